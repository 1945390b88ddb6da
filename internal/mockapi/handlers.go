package mockapi

import (
	"net/http"
	"net/url"
	"strings"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/session"
)

type userResponse struct {
	Message string            `json:"message,omitempty"`
	User    donorAuth.Profile `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in donorAuth.Registration
	if err := decode(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "email, password and name are required")
		return
	}
	if in.BloodGroup != "" && !session.ValidBloodGroup(in.BloodGroup) {
		writeMessage(w, http.StatusBadRequest, "invalid blood group")
		return
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "password rejected")
		return
	}

	profile := donorAuth.Profile{
		ID:         newID(),
		Name:       strings.TrimSpace(in.Name),
		Email:      email,
		Role:       donorAuth.RoleDonor,
		BloodGroup: in.BloodGroup,
		District:   in.District,
		Upazila:    in.Upazila,
		Avatar:     in.Avatar,
		Status:     donorAuth.StatusActive,
	}

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "user already exists")
		return
	}
	s.accounts[email] = &account{profile: profile, hash: hash}
	s.byID[profile.ID] = email
	s.mu.Unlock()

	if err := s.startSession(w, r, profile.ID); err != nil {
		writeMessage(w, http.StatusInternalServerError, "session error")
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Message: "registered", User: profile})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		writeMessage(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var in credentials
	if err := decode(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.RLock()
	a, ok := s.accounts[email]
	var acct account
	if ok {
		acct = *a
	}
	s.mu.RUnlock()

	if !ok {
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	match, err := s.hasher.Verify(in.Password, acct.hash)
	if err != nil || !match {
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if acct.profile.Blocked() {
		writeMessage(w, http.StatusForbidden, "account blocked")
		return
	}

	if err := s.startSession(w, r, acct.profile.ID); err != nil {
		writeMessage(w, http.StatusInternalServerError, "session error")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "logged in", User: acct.profile})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.cookies.Get(r, SessionCookie)
	delete(sess.Values, sessionKeyUserID)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		writeMessage(w, http.StatusInternalServerError, "session error")
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.sessionAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: acct.profile})
}

// handleGetProfile answers with a bare profile; /auth/me wraps it in {user}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	acct, _ := s.sessionAccount(r)
	writeJSON(w, http.StatusOK, acct.profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acct, _ := s.sessionAccount(r)

	var upd donorAuth.ProfileUpdate
	if err := decode(w, r, &upd); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if upd.BloodGroup != nil && !session.ValidBloodGroup(*upd.BloodGroup) {
		writeMessage(w, http.StatusBadRequest, "invalid blood group")
		return
	}
	if upd.Avatar != nil {
		if u, err := url.Parse(*upd.Avatar); err != nil || u.Host == "" {
			writeMessage(w, http.StatusBadRequest, "invalid avatar")
			return
		}
	}

	var updated donorAuth.Profile
	s.mutate(acct.profile.Email, func(a *account) {
		apply(&a.profile, upd)
		updated = a.profile
	})
	writeJSON(w, http.StatusOK, userResponse{Message: "profile updated", User: updated})
}

func apply(p *donorAuth.Profile, upd donorAuth.ProfileUpdate) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Avatar != nil {
		p.Avatar = *upd.Avatar
	}
	if upd.BloodGroup != nil {
		p.BloodGroup = *upd.BloodGroup
	}
	if upd.District != nil {
		p.District = *upd.District
	}
	if upd.Upazila != nil {
		p.Upazila = *upd.Upazila
	}
}
