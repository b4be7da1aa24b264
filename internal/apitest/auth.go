package apitest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) issueToken(userID int64) (string, time.Time, error) {
	expires := s.now().Add(time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return signed, expires, err
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

func (s *Server) parseToken(value string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, model.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			writeFail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := s.parseToken(cookie.Value)
		if err != nil {
			writeFail(w, http.StatusUnauthorized, "Session expired")
			return
		}
		user, ok := s.User(userID)
		if !ok {
			writeFail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	var found *userRecord
	for _, record := range s.users {
		if strings.EqualFold(record.user.Username, req.Username) {
			found = record
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		writeFail(w, http.StatusOK, "Invalid username or password")
		return
	}

	token, expires, err := s.issueToken(found.user.ID)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Could not create session")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", Expires: expires, HttpOnly: true})
	writeOK(w, identityOf(found.user), "Login successful")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName  string `json:"firstName"`
		MiddleName string `json:"middleName"`
		LastName   string `json:"lastName"`
		Username   string `json:"username"`
		Password   string `json:"password"`
		Email      string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if s.taken(req.Username, req.Email, 0) {
		writeFail(w, http.StatusOK, "Username or email already exists")
		return
	}
	s.AddUser(model.User{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Username:   req.Username,
		Email:      req.Email,
	}, req.Password)
	writeOK(w, nil, "Registration successful")
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeOK(w, nil, "Logged out")
}

func (s *Server) currentUser(w http.ResponseWriter, _ *http.Request, user model.User) {
	writeOK(w, identityOf(user), "")
}

func (s *Server) taken(username, email string, exceptID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.users {
		if id == exceptID {
			continue
		}
		if strings.EqualFold(record.user.Username, username) || strings.EqualFold(record.user.Email, email) {
			return true
		}
	}
	return false
}

func readAll(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}

func hijackAndClose(w http.ResponseWriter) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
