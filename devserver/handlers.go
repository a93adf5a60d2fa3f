package devserver

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/panyam/mddclient/api"
)

// pathID reads the numeric {id} route variable
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid id")
	}
	return id, nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	sort := api.FeedSort(r.URL.Query().Get("sort"))
	if sort == "" {
		sort = api.SortDesc
	}
	if sort != api.SortAsc && sort != api.SortDesc {
		s.writeError(w, r, validationError(map[string]string{"sort": "Sort must be asc or desc"}))
		return
	}

	feed, err := s.store.feed(userIDFromContext(r.Context()), sort == api.SortAsc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.listSubjects(userIDFromContext(r.Context())))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	s.setSubscription(w, r, true)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	s.setSubscription(w, r, false)
}

func (s *Server) setSubscription(w http.ResponseWriter, r *http.Request, subscribed bool) {
	subjectID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.setSubscription(userIDFromContext(r.Context()), subjectID, subscribed); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateCreatePost(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.store.createPost(userIDFromContext(r.Context()), req.SubjectID, req.Title, req.Content, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreatePostResponse{ID: p.ID})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.store.postDetail(postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateComment(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.addComment(userIDFromContext(r.Context()), postID, req.Content, s.now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.profile(userIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateUpdateUser(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var passwordHash *string
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h := string(hash)
		passwordHash = &h
	}

	u, err := s.store.updateUser(userIDFromContext(r.Context()), req.Email, req.Username, passwordHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIUser(u))
}
