package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"unicode"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const avatarBaseURL = "https://api.dicebear.com/6.x/initials/svg"

// IDTokenVerifier verifies Firebase ID tokens
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserService manages accounts, profiles and profile images
type UserService struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	images   ImageResolver
	tokens   TokenIssuer
	verifier IDTokenVerifier
	logger   *slog.Logger
}

// NewUserService creates a new UserService. verifier may be nil, in which
// case Firebase login is unavailable.
func NewUserService(users repositories.UserRepository, posts repositories.PostRepository, images ImageResolver, tokens TokenIssuer, verifier IDTokenVerifier, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		posts:    posts,
		images:   images,
		tokens:   tokens,
		verifier: verifier,
		logger:   logging.WithComponent(logger, "users"),
	}
}

// AvatarURL returns the generated initials avatar for name
func AvatarURL(name string) string {
	var initials strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		initials.WriteRune(unicode.ToUpper(r))
	}
	return avatarBaseURL + "?seed=" + url.QueryEscape(initials.String())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account with a hashed password and a generated avatar
// and returns it with a token.
func (s *UserService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	name := strings.TrimSpace(req.Name)
	user := &models.User{
		Name:     name,
		Username: strings.TrimSpace(req.Username),
		Bio:      req.Bio,
		Email:    normalizeEmail(req.Email),
		Password: string(hashedPassword),
		ImageURL: AvatarURL(name),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

// Login checks email and password. Unknown emails and wrong passwords fail
// the same way.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

// FirebaseEnabled reports whether Firebase login is configured
func (s *UserService) FirebaseEnabled() bool {
	return s.verifier != nil
}

// FirebaseLogin exchanges a Firebase ID token for a local token. A first
// login creates the account with a random password.
func (s *UserService) FirebaseLogin(ctx context.Context, idToken string) (*models.User, string, error) {
	if s.verifier == nil {
		return nil, "", &apperrors.AuthError{Message: "firebase login is not configured"}
	}
	decoded, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, "", &apperrors.AuthError{Message: "invalid firebase ID token", Invalid: true}
	}

	email, _ := decoded.Claims["email"].(string)
	email = normalizeEmail(email)
	if email == "" {
		return nil, "", apperrors.NewValidationError("email", "firebase account has no email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, "", err
	}
	if user == nil {
		if user, err = s.createFirebaseUser(ctx, email, decoded.Claims); err != nil {
			return nil, "", err
		}
		logging.FromContext(ctx, s.logger).Info("account created from firebase login",
			"user_id", user.ID.Hex(), "firebase_uid", decoded.UID)
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

func (s *UserService) createFirebaseUser(ctx context.Context, email string, claims map[string]interface{}) (*models.User, error) {
	name, _ := claims["name"].(string)
	if name = strings.TrimSpace(name); name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	image, _ := claims["picture"].(string)
	if image == "" {
		image = AvatarURL(name)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		ImageURL: image,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent first login
		if errors.Is(err, apperrors.ErrEmailTaken) {
			return s.users.GetUserByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}

// Get returns a user without the password hash
func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile patches the caller's own profile fields
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, req models.UpdateUserRequest) (*models.User, error) {
	if req.IsEmpty() {
		return nil, apperrors.NewValidationError("", "nothing to update")
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name", "name cannot be empty")
		}
		req.Name = &name
	}
	return s.users.UpdateProfile(ctx, actor.ID, req)
}

// Profile returns a user with their posts and saves resolved. Posts that no
// longer exist are left out.
func (s *UserService) Profile(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.GetPostsByIDs(ctx, user.Posts)
	if err != nil {
		return nil, err
	}
	saves, err := s.posts.GetPostsByIDs(ctx, user.Saves)
	if err != nil {
		return nil, err
	}
	return &models.UserProfile{User: *user, Posts: posts, Saves: saves}, nil
}

// List returns every user
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.GetUsers(ctx, nil)
}

// ListAvailable returns every user except the caller
func (s *UserService) ListAvailable(ctx context.Context, caller *models.User) ([]models.User, error) {
	return s.users.GetUsers(ctx, &caller.ID)
}

// ChangeProfileImage replaces the profile image of userID, which must be the
// caller. The image is the whole change, so a media host failure fails it.
func (s *UserService) ChangeProfileImage(ctx context.Context, actor *models.User, userID primitive.ObjectID, up *media.Upload) (*models.User, error) {
	if actor.ID != userID {
		return nil, &apperrors.ForbiddenError{Message: "you can only change your own profile image"}
	}
	if up == nil {
		return nil, apperrors.NewValidationError("file", "image file is required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	current := media.Image{URL: user.ImageURL, Key: user.ImageKey}
	img, err := s.images.Replace(ctx, current, media.FolderProfiles, up, func(img media.Image) error {
		return s.users.SetImage(ctx, userID, img.URL, img.Key)
	})
	if err != nil {
		return nil, err
	}
	user.ImageURL, user.ImageKey = img.URL, img.Key
	return user, nil
}
