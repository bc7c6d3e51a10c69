// Package alphatrak talks to the AlphaTRAK pet-health service: login, pet
// listing and the date-windowed activity fetch.
package alphatrak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"alphatrak-observer/src/crypto"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
)

const (
	DefaultBaseURL          = "https://alphatrakapi.zoetis.com/api"
	DefaultLoginEndpoint    = "Login/UserLogin"
	DefaultPetsEndpoint     = "Pet/GetPetListByUserId"
	DefaultActivityEndpoint = "GetPetActivityByDateWiseList"
	DefaultLanguageID       = "1"
	DefaultTimeout          = 30 * time.Second
	DefaultValidationWindow = 24 * time.Hour

	// WireTimeFormat is how the service expects date bounds: no zone, no
	// fraction.
	WireTimeFormat = "2006-01-02T15:04:05"

	maxLoggedBody = 200
)

// ErrNoPet is returned by FetchActivity when no pet id has been set.
var ErrNoPet = errors.New("no pet id configured")

// ClientConfig holds everything the client needs besides transport.
type ClientConfig struct {
	BaseURL          string
	LoginEndpoint    string
	PetsEndpoint     string
	ActivityEndpoint string
	LanguageID       string
	Timeout          time.Duration
	ValidationWindow time.Duration
	PasswordKey      []byte
}

// ConfigFromModel fills a ClientConfig from the application config,
// applying defaults for anything left empty.
func ConfigFromModel(cfg *models.MConfig) ClientConfig {
	cc := ClientConfig{
		BaseURL:          cfg.API.BaseURL,
		LoginEndpoint:    cfg.API.LoginEndpoint,
		PetsEndpoint:     cfg.API.PetsEndpoint,
		ActivityEndpoint: cfg.API.ActivityEndpoint,
		LanguageID:       cfg.API.LanguageID,
	}
	if cfg.API.RequestTimeout > 0 {
		cc.Timeout = time.Duration(cfg.API.RequestTimeout) * time.Second
	}
	if cfg.Polling.ValidationWindowDays > 0 {
		cc.ValidationWindow = time.Duration(cfg.Polling.ValidationWindowDays) * 24 * time.Hour
	}
	if cfg.API.PasswordKey != "" {
		cc.PasswordKey = []byte(cfg.API.PasswordKey)
	}
	return cc.withDefaults()
}

func (cc ClientConfig) withDefaults() ClientConfig {
	if cc.BaseURL == "" {
		cc.BaseURL = DefaultBaseURL
	}
	cc.BaseURL = strings.TrimRight(cc.BaseURL, "/")
	if cc.LoginEndpoint == "" {
		cc.LoginEndpoint = DefaultLoginEndpoint
	}
	if cc.PetsEndpoint == "" {
		cc.PetsEndpoint = DefaultPetsEndpoint
	}
	if cc.ActivityEndpoint == "" {
		cc.ActivityEndpoint = DefaultActivityEndpoint
	}
	if cc.LanguageID == "" {
		cc.LanguageID = DefaultLanguageID
	}
	if cc.Timeout <= 0 {
		cc.Timeout = DefaultTimeout
	}
	if cc.ValidationWindow <= 0 {
		cc.ValidationWindow = DefaultValidationWindow
	}
	if len(cc.PasswordKey) == 0 {
		cc.PasswordKey = crypto.DefaultPasswordKey
	}
	return cc
}

// -----------------------------------------------------------------------------

// Client is safe for concurrent use. The only state it carries is its
// Session.
type Client struct {
	cfg     ClientConfig
	net     interfaces.INetworkManager
	session *Session
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewClient(cfg ClientConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewLogger(nil, "AlphaTrakClient")
	}
	return &Client{
		cfg:     cfg.withDefaults(),
		net:     netMgr,
		session: &Session{},
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Fork returns a client sharing config and transport but with a fresh
// session carrying the same pet id. Re-authentication logs in on a fork so
// the live client keeps its token until the new one is known.
func (c *Client) Fork() *Client {
	fork := &Client{
		cfg:     c.cfg,
		net:     c.net,
		session: &Session{},
		logger:  c.logger,
	}
	if id, ok := c.session.PetID(); ok {
		fork.session.SetPetID(id)
	}
	return fork
}

// -----------------------------------------------------------------------------

func (c *Client) Session() *Session { return c.session }

func (c *Client) Token() string { return c.session.Token() }

// SetToken replaces the bearer token used by subsequent requests.
func (c *Client) SetToken(token string) { c.session.SetToken(token) }

func (c *Client) SetPetID(id int64) { c.session.SetPetID(id) }

// -----------------------------------------------------------------------------

// post sends one JSON request. The token is read once here; a concurrent
// SetToken only affects later calls. Transport failures become
// ConnectionError unless the caller's context ended, in which case the
// context error is returned unchanged.
func (c *Client) post(ctx context.Context, endpoint string, body any, withAuth bool) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding request: %w", err)
	}

	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US;q=1.0",
		"Content-Type":    "application/json",
	}
	if withAuth {
		headers["Authorization"] = "bearer " + c.session.Token()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	status, data, err := c.net.Do(reqCtx, http.MethodPost, url, headers, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, helpers.NewConnectionError(fmt.Sprintf("timeout after %v calling %s", c.cfg.Timeout, endpoint), err)
		}
		return 0, nil, helpers.NewConnectionError("request to "+endpoint+" failed", err)
	}
	return status, data, nil
}

// -----------------------------------------------------------------------------

type loginRequest struct {
	UserID   string `json:"UserId"`
	Password string `json:"Password"`
	SKey     string `json:"SKey"`
}

// Login authenticates with username and plaintext password. On success the
// session takes the returned token and user id; a body without one of them
// leaves that part of the session unchanged.
func (c *Client) Login(ctx context.Context, username, password string) (*models.MLoginResult, error) {
	encrypted, err := crypto.EncryptPasswordWithKey(c.cfg.PasswordKey, password)
	if err != nil {
		return nil, fmt.Errorf("encrypting password: %w", err)
	}
	salt, err := crypto.RandomSalt()
	if err != nil {
		return nil, err
	}

	status, data, err := c.post(ctx, c.cfg.LoginEndpoint, loginRequest{
		UserID:   username,
		Password: encrypted,
		SKey:     salt,
	}, false)
	if err != nil {
		return nil, err
	}

	body, err := interpretLogin(status, data)
	if err != nil {
		c.logger.Warning("Login for %s failed: %v", username, err)
		return nil, err
	}

	token, userID := loginFields(body)
	if token == "" {
		c.logger.Warning("Login succeeded but no access token was returned; keeping the current session token")
	}
	c.session.setLogin(token, userID)
	c.logger.Info("Logged in as %s", username)

	return &models.MLoginResult{Body: body, Token: token, UserID: userID}, nil
}

// -----------------------------------------------------------------------------

// ListPets returns the pets of the logged-in account. Without a token it
// fails with AuthError, without a user id with ApiError; neither case sends
// a request.
func (c *Client) ListPets(ctx context.Context) ([]models.MPetRecord, error) {
	if c.session.Token() == "" {
		return nil, helpers.NewAuthError("not logged in", 0, nil)
	}
	userID, ok := c.session.UserID()
	if !ok {
		return nil, helpers.NewApiError("no user id in session", 0, nil)
	}

	status, data, err := c.post(ctx, c.cfg.PetsEndpoint, map[string]any{"UserId": userID}, true)
	if err != nil {
		return nil, err
	}
	raw, err := interpretResponse(status, data)
	if err != nil {
		return nil, err
	}
	pets, err := decodePets(raw)
	if err != nil {
		return nil, helpers.NewApiError("invalid pet list", status, err)
	}
	return pets, nil
}

// -----------------------------------------------------------------------------

type activityRequest struct {
	PetID      int64  `json:"PetId"`
	FromDate   string `json:"FromDate"`
	ToDate     string `json:"ToDate"`
	LanguageID string `json:"LanguageId"`
}

// FetchActivity retrieves every activity category for the session's pet in
// [from, to]. An empty languageID means the configured default. Responses
// are interpreted leniently: see responseRules.
func (c *Client) FetchActivity(ctx context.Context, from, to time.Time, languageID string) (*models.MActivityPayload, error) {
	petID, ok := c.session.PetID()
	if !ok {
		return nil, ErrNoPet
	}
	if c.session.Token() == "" {
		return nil, helpers.NewAuthError("no access token", 0, nil)
	}
	if languageID == "" {
		languageID = c.cfg.LanguageID
	}

	req := activityRequest{
		PetID:      petID,
		FromDate:   from.Format(WireTimeFormat),
		ToDate:     to.Format(WireTimeFormat),
		LanguageID: languageID,
	}
	status, data, err := c.post(ctx, c.cfg.ActivityEndpoint, req, true)
	if err != nil {
		return nil, err
	}

	view, _ := parseEnvelope(status, data)
	raw, err := interpretResponse(status, data)
	if err != nil {
		if !view.parsed && status != http.StatusUnauthorized {
			c.logger.Warning("Unparseable activity response (status %d): %s", status, truncateBody(data))
		}
		return nil, err
	}
	payload, err := decodeActivity(raw, view.success)
	if err != nil {
		return nil, helpers.NewApiError("invalid activity data", status, err)
	}
	return payload, nil
}

func truncateBody(data []byte) string {
	if len(data) <= maxLoggedBody {
		return string(data)
	}
	return string(data[:maxLoggedBody]) + "..."
}

// -----------------------------------------------------------------------------

// ValidateConnection fetches the short validation window ending now. API
// failures are logged and reported as false; only cancellation is returned
// as an error.
func (c *Client) ValidateConnection(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	if _, err := c.FetchActivity(ctx, now.Add(-c.cfg.ValidationWindow), now, ""); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		c.logger.Debug("Connection validation failed: %v", err)
		return false, nil
	}
	return true, nil
}
