// Package api issues the MDD application calls (feed, subjects, posts,
// comments and profile) through a client.AuthClient.
//
// Every method makes exactly one HTTP call. Bearer attachment, refresh and
// retry happen in the AuthClient's transport, so a method only ever sees the
// final response. Non-2xx responses are returned as *Error; a failed token
// refresh is returned as *client.RefreshError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/panyam/mddclient/client"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 4 << 20

// Service is the API consumer used by the CLI and by page-level code
type Service struct {
	ac     *client.AuthClient
	logger *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for request tracing
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service that sends its calls through ac
func NewService(ac *client.AuthClient, opts ...ServiceOption) *Service {
	s := &Service{ac: ac, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying AuthClient
func (s *Service) Client() *client.AuthClient {
	return s.ac
}

// Login authenticates with an email or username and stores the returned access token
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.do(ctx, opLogin, http.MethodPost, "/api/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &Error{Op: opLogin.name, Kind: KindUnknown, Status: http.StatusOK, Message: "no access token in response"}
	}
	s.ac.SetAccessToken(resp.AccessToken)
	return &resp, nil
}

// Register creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := s.do(ctx, opRegister, http.MethodPost, "/api/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the session. The local token is cleared whatever the server answers.
func (s *Service) Logout(ctx context.Context) error {
	return s.ac.Logout(ctx)
}

// GetFeed returns the posts of the subscribed subjects. An empty sort means SortDesc.
func (s *Service) GetFeed(ctx context.Context, sort FeedSort) ([]FeedPost, error) {
	if sort == "" {
		sort = SortDesc
	}
	if sort != SortAsc && sort != SortDesc {
		return nil, fmt.Errorf("invalid feed sort %q", sort)
	}
	var posts []FeedPost
	if err := s.do(ctx, opFeed, http.MethodGet, "/api/feed", url.Values{"sort": {string(sort)}}, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListSubjects returns every subject with the caller's subscription flag
func (s *Service) ListSubjects(ctx context.Context) ([]SubjectItem, error) {
	var subjects []SubjectItem
	if err := s.do(ctx, opListSubjects, http.MethodGet, "/api/subjects", nil, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// GetSubjects returns the subjects reduced to id and name
func (s *Service) GetSubjects(ctx context.Context) ([]SubjectOption, error) {
	subjects, err := s.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	options := make([]SubjectOption, len(subjects))
	for i, subject := range subjects {
		options[i] = SubjectOption{ID: subject.ID, Name: subject.Name}
	}
	return options, nil
}

// Subscribe subscribes the caller to a subject. Subscribing twice is not an error.
func (s *Service) Subscribe(ctx context.Context, subjectID int64) error {
	return s.do(ctx, opSubscribe, http.MethodPost, subscribePath(subjectID), nil, struct{}{}, nil)
}

// Unsubscribe removes the caller's subscription to a subject
func (s *Service) Unsubscribe(ctx context.Context, subjectID int64) error {
	return s.do(ctx, opUnsubscribe, http.MethodDelete, subscribePath(subjectID), nil, nil, nil)
}

// CreatePost publishes a post in a subject and returns its id
func (s *Service) CreatePost(ctx context.Context, req CreatePostRequest) (*CreatePostResponse, error) {
	var resp CreatePostResponse
	if err := s.do(ctx, opCreatePost, http.MethodPost, "/api/posts", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPost returns a post with its comments
func (s *Service) GetPost(ctx context.Context, postID int64) (*PostDetail, error) {
	var post PostDetail
	if err := s.do(ctx, opGetPost, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), nil, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// AddComment comments on a post
func (s *Service) AddComment(ctx context.Context, postID int64, req CreateCommentRequest) error {
	return s.do(ctx, opAddComment, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), nil, req, nil)
}

// GetProfile returns the caller's profile and subscriptions
func (s *Service) GetProfile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := s.do(ctx, opGetProfile, http.MethodGet, "/api/users/me", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile changes the caller's email, username or password
func (s *Service) UpdateProfile(ctx context.Context, req UpdateUserRequest) (*UpdateUserResponse, error) {
	var resp UpdateUserResponse
	if err := s.do(ctx, opUpdateProfile, http.MethodPut, "/api/users/me", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func subscribePath(subjectID int64) string {
	return fmt.Sprintf("/api/subjects/%d/subscribe", subjectID)
}

// do sends one request and decodes a 2xx body into out (when non-nil).
// A non-2xx response is returned as *Error mapped for op.
func (s *Service) do(ctx context.Context, op operation, method, path string, query url.Values, in, out any) error {
	target := s.ac.URL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op.name, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.ac.HTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newError(op, resp.StatusCode, data)
		s.logger.Debug("api call failed", "op", op.name, "status", resp.StatusCode, "kind", apiErr.Kind)
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: invalid response from server: %w", op.name, err)
		}
	}
	return nil
}
