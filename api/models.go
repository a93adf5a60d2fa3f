package api

// FeedSort orders the feed by creation date
type FeedSort string

const (
	SortAsc  FeedSort = "asc"
	SortDesc FeedSort = "desc"
)

// User is the identity returned by login, register and profile updates
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type LoginRequest struct {
	// Identifier is an email address or a username
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse = User

type FeedPost struct {
	ID        int64  `json:"id"`
	SubjectID int64  `json:"subjectId"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// SubjectItem is a subject as listed with the caller's subscription flag
type SubjectItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subscribed  bool   `json:"subscribed"`
}

// SubjectOption is the reduced subject used to pick one when writing a post
type SubjectOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CreatePostRequest struct {
	SubjectID int64  `json:"subjectId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

type CreatePostResponse struct {
	ID int64 `json:"id"`
}

type PostDetail struct {
	ID        int64         `json:"id"`
	Subject   SubjectOption `json:"subject"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Author    string        `json:"author"`
	CreatedAt string        `json:"createdAt"`
	Comments  []PostComment `json:"comments"`
}

type PostComment struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type UserProfile struct {
	ID            int64              `json:"id"`
	Email         string             `json:"email"`
	Username      string             `json:"username"`
	Subscriptions []UserSubscription `json:"subscriptions"`
}

type UserSubscription struct {
	SubjectID   int64  `json:"subjectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateUserRequest changes only the fields that are set
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

type UpdateUserResponse = User
