package devserver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panyam/mddclient/api"
)

type user struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
}

type subject struct {
	ID          int64
	Name        string
	Description string
}

type post struct {
	ID        int64
	SubjectID int64
	AuthorID  int64
	Title     string
	Content   string
	CreatedAt time.Time
}

type comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	Content   string
	CreatedAt time.Time
}

// memoryStore holds the application data. Lookups on email and username
// are case-insensitive.
type memoryStore struct {
	mu sync.RWMutex

	nextID        int64
	users         map[int64]*user
	subjects      []*subject
	posts         map[int64]*post
	comments      []*comment
	subscriptions map[int64]map[int64]bool // user id -> subject ids
}

func newMemoryStore(seeds []SubjectSeed) *memoryStore {
	st := &memoryStore{
		users:         make(map[int64]*user),
		posts:         make(map[int64]*post),
		subscriptions: make(map[int64]map[int64]bool),
	}
	for _, seed := range seeds {
		st.subjects = append(st.subjects, &subject{ID: st.newID(), Name: seed.Name, Description: seed.Description})
	}
	return st
}

// newID must be called with mu held (or before the store is shared)
func (st *memoryStore) newID() int64 {
	st.nextID++
	return st.nextID
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toAPIUser(u *user) api.User {
	return api.User{ID: u.ID, Email: u.Email, Username: u.Username}
}

// findUserLocked must be called with mu held. excludeID skips one user.
func (st *memoryStore) findUserLocked(match func(*user) bool, excludeID int64) *user {
	for _, u := range st.users {
		if u.ID != excludeID && match(u) {
			return u
		}
	}
	return nil
}

func byEmail(email string) func(*user) bool {
	return func(u *user) bool { return strings.EqualFold(u.Email, email) }
}

func byUsername(username string) func(*user) bool {
	return func(u *user) bool { return strings.EqualFold(u.Username, username) }
}

func (st *memoryStore) createUser(email, username, passwordHash string) (*user, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.findUserLocked(byEmail(email), 0) != nil {
		return nil, conflict("This email address is not available")
	}
	if st.findUserLocked(byUsername(username), 0) != nil {
		return nil, conflict("This username is not available")
	}

	u := &user{ID: st.newID(), Email: email, Username: username, PasswordHash: passwordHash}
	st.users[u.ID] = u
	return u, nil
}

// userByIdentifier looks a user up by email when identifier contains "@",
// by username otherwise
func (st *memoryStore) userByIdentifier(identifier string) (*user, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	match := byUsername(identifier)
	if strings.Contains(identifier, "@") {
		match = byEmail(identifier)
	}
	u := st.findUserLocked(match, 0)
	if u == nil {
		return nil, false
	}
	copied := *u
	return &copied, true
}

func (st *memoryStore) getUser(id int64) (*user, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	u, ok := st.users[id]
	if !ok {
		return nil, notFound("User not found")
	}
	copied := *u
	return &copied, nil
}

// updateUser applies the non-nil fields. passwordHash is already hashed.
func (st *memoryStore) updateUser(id int64, email, username, passwordHash *string) (*user, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[id]
	if !ok {
		return nil, notFound("User not found")
	}

	if email != nil && !strings.EqualFold(*email, u.Email) {
		if st.findUserLocked(byEmail(*email), id) != nil {
			return nil, conflict("This email address is not available")
		}
	}
	if username != nil && !strings.EqualFold(*username, u.Username) {
		if st.findUserLocked(byUsername(*username), id) != nil {
			return nil, conflict("This username is not available")
		}
	}

	if email != nil {
		u.Email = *email
	}
	if username != nil {
		u.Username = *username
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	copied := *u
	return &copied, nil
}

func (st *memoryStore) subjectLocked(id int64) *subject {
	for _, sub := range st.subjects {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

func (st *memoryStore) listSubjects(userID int64) []api.SubjectItem {
	st.mu.RLock()
	defer st.mu.RUnlock()

	subscribed := st.subscriptions[userID]
	items := make([]api.SubjectItem, 0, len(st.subjects))
	for _, sub := range st.subjects {
		items = append(items, api.SubjectItem{
			ID:          sub.ID,
			Name:        sub.Name,
			Description: sub.Description,
			Subscribed:  subscribed[sub.ID],
		})
	}
	return items
}

// setSubscription subscribes or unsubscribes; repeating either is a no-op
func (st *memoryStore) setSubscription(userID, subjectID int64, subscribed bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.users[userID]; !ok {
		return notFound("User not found")
	}
	if st.subjectLocked(subjectID) == nil {
		return notFound("Subject not found")
	}

	if subscribed {
		if st.subscriptions[userID] == nil {
			st.subscriptions[userID] = make(map[int64]bool)
		}
		st.subscriptions[userID][subjectID] = true
	} else {
		delete(st.subscriptions[userID], subjectID)
	}
	return nil
}

func (st *memoryStore) profile(userID int64) (*api.UserProfile, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	u, ok := st.users[userID]
	if !ok {
		return nil, notFound("User not found")
	}

	profile := &api.UserProfile{ID: u.ID, Email: u.Email, Username: u.Username, Subscriptions: []api.UserSubscription{}}
	for _, sub := range st.subjects {
		if st.subscriptions[userID][sub.ID] {
			profile.Subscriptions = append(profile.Subscriptions, api.UserSubscription{
				SubjectID:   sub.ID,
				Name:        sub.Name,
				Description: sub.Description,
			})
		}
	}
	return profile, nil
}

func (st *memoryStore) createPost(authorID, subjectID int64, title, content string, now time.Time) (*post, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.subjectLocked(subjectID) == nil {
		return nil, notFound("Subject not found")
	}
	if _, ok := st.users[authorID]; !ok {
		return nil, notFound("User not found")
	}

	p := &post{ID: st.newID(), SubjectID: subjectID, AuthorID: authorID, Title: title, Content: content, CreatedAt: now}
	st.posts[p.ID] = p
	return p, nil
}

func (st *memoryStore) usernameLocked(id int64) string {
	if u, ok := st.users[id]; ok {
		return u.Username
	}
	return ""
}

// feed returns the posts of the subjects userID follows, ordered by creation
// date (ties broken by id)
func (st *memoryStore) feed(userID int64, ascending bool) ([]api.FeedPost, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if _, ok := st.users[userID]; !ok {
		return nil, notFound("User not found")
	}

	subscribed := st.subscriptions[userID]
	posts := make([]*post, 0)
	for _, p := range st.posts {
		if subscribed[p.SubjectID] {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	feed := make([]api.FeedPost, len(posts))
	for i, p := range posts {
		feed[i] = api.FeedPost{
			ID:        p.ID,
			SubjectID: p.SubjectID,
			Author:    st.usernameLocked(p.AuthorID),
			Title:     p.Title,
			Content:   p.Content,
			CreatedAt: timestamp(p.CreatedAt),
		}
	}
	return feed, nil
}

func (st *memoryStore) postDetail(postID int64) (*api.PostDetail, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	p, ok := st.posts[postID]
	if !ok {
		return nil, notFound("Post not found")
	}

	detail := &api.PostDetail{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    st.usernameLocked(p.AuthorID),
		CreatedAt: timestamp(p.CreatedAt),
		Comments:  []api.PostComment{},
	}
	if sub := st.subjectLocked(p.SubjectID); sub != nil {
		detail.Subject = api.SubjectOption{ID: sub.ID, Name: sub.Name}
	}
	for _, c := range st.comments {
		if c.PostID == postID {
			detail.Comments = append(detail.Comments, api.PostComment{
				ID:        c.ID,
				Content:   c.Content,
				Author:    st.usernameLocked(c.AuthorID),
				CreatedAt: timestamp(c.CreatedAt),
			})
		}
	}
	return detail, nil
}

func (st *memoryStore) addComment(authorID, postID int64, content string, now time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.posts[postID]; !ok {
		return notFound("Post not found")
	}
	if _, ok := st.users[authorID]; !ok {
		return notFound("User not found")
	}
	st.comments = append(st.comments, &comment{ID: st.newID(), PostID: postID, AuthorID: authorID, Content: content, CreatedAt: now})
	return nil
}
