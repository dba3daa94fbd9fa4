// Package auth signs users in with emailed one-time codes or Google and issues session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/usage"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCodeTTL is how long an emailed code stays valid
const DefaultCodeTTL = 15 * time.Minute

const codeDigits = 6

// MaxCodeAttempts is how many wrong guesses burn a pending code
const MaxCodeAttempts = 5

// ErrInvalidCode covers unknown, expired and mismatched codes alike
var ErrInvalidCode = errors.New("invalid or expired code")

var errInvalidEmail = models.ValidationError{Message: "Please enter a valid email address."}

// Mailer delivers one email
type Mailer interface {
	Send(m utils.Mail) error
}

// SignIn is a successful sign-in
type SignIn struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

type Service struct {
	codes    CodeStore
	profiles usage.SessionStore
	tokens   *utils.TokenIssuer
	mailer   Mailer
	codeTTL  time.Duration
	logger   logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time
	cost     int
}

func NewService(codes CodeStore, profiles usage.SessionStore, tokens *utils.TokenIssuer, mailer Mailer, codeTTL time.Duration, logger logrus.FieldLogger) *Service {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		codes:    codes,
		profiles: profiles,
		tokens:   tokens,
		mailer:   mailer,
		codeTTL:  codeTTL,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// Tokens exposes the issuer so handlers can validate bearer tokens
func (s *Service) Tokens() *utils.TokenIssuer { return s.tokens }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkEmail(email string) (string, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", errInvalidEmail
	}
	return email, nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// RequestCode stores a fresh code for email and mails it. Any earlier code is replaced.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email, err := s.checkEmail(email)
	if err != nil {
		return err
	}
	log := s.logger.WithField("email", email)

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.now().UTC()
	err = s.codes.Save(ctx, models.LoginCode{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.codeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	minutes := int(s.codeTTL.Minutes())
	err = s.mailer.Send(utils.Mail{
		ToEmail:     email,
		Subject:     "Your sign-in code",
		TextContent: fmt.Sprintf("Your sign-in code is: %s\nIt expires in %d minutes.", code, minutes),
		HTMLContent: fmt.Sprintf("<p>Your sign-in code is:</p><h1><strong>%s</strong></h1><p>It expires in %d minutes.</p>", code, minutes),
	})
	if err != nil {
		return fmt.Errorf("failed to send sign-in code: %w", err)
	}
	log.Info("Sign-in code sent")
	return nil
}

// VerifyCode consumes a valid code and signs the owner of email in
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*SignIn, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	stored, err := s.codes.Get(ctx, email)
	if errors.Is(err, ErrCodeNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	if !s.now().Before(stored.ExpiresAt) {
		if err := s.codes.Delete(ctx, email); err != nil {
			s.logger.WithError(err).WithField("email", email).Warn("Failed to delete expired code")
		}
		return nil, ErrInvalidCode
	}
	if stored.Attempts >= MaxCodeAttempts {
		return nil, ErrInvalidCode
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)); err != nil {
		s.countFailure(ctx, email)
		return nil, ErrInvalidCode
	}

	if err := s.codes.Delete(ctx, email); err != nil {
		return nil, err
	}
	return s.SignInEmail(ctx, email)
}

// countFailure records a wrong guess and drops the code once it runs out of attempts
func (s *Service) countFailure(ctx context.Context, email string) {
	log := s.logger.WithField("email", email)
	attempts, err := s.codes.AddAttempt(ctx, email)
	if errors.Is(err, ErrCodeNotFound) {
		return
	}
	if err != nil {
		log.WithError(err).Warn("Failed to count login attempt")
		return
	}
	if attempts < MaxCodeAttempts {
		return
	}
	log.Info("Too many wrong codes, discarding")
	if err := s.codes.Delete(ctx, email); err != nil {
		log.WithError(err).Warn("Failed to delete exhausted code")
	}
}

// SignInEmail finds or creates the profile for a verified email and issues a token
func (s *Service) SignInEmail(ctx context.Context, email string) (*SignIn, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByEmail(ctx, email)
	if errors.Is(err, usage.ErrProfileNotFound) {
		profile, err = s.profiles.CreateProfile(ctx, email)
		if err == nil {
			s.logger.WithFields(logrus.Fields{"user_id": profile.ID, "email": email}).Info("Profile created")
		}
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &SignIn{Token: token, Profile: profile}, nil
}
