package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vazhid/lezgian-tts/internal/coordinator"
	"github.com/Vazhid/lezgian-tts/internal/delivery"
	"github.com/Vazhid/lezgian-tts/internal/models"
)

const historyLimit = 50

// UserStore is the slice of the persistence layer the auth handlers use.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	TouchLastLogin(ctx context.Context, id int64) error
	GetHistory(ctx context.Context, userID int64, limit int) ([]models.HistoryEntry, error)
}

// Coordinator is the task-submission surface the handlers need.
type Coordinator interface {
	Submit(ctx context.Context, text, language string, userID int64) (string, error)
	Poll(taskID string) coordinator.TaskState
}

// AudioFetcher serves stored artifacts under access control.
type AudioFetcher interface {
	Fetch(ctx context.Context, filename string, userID int64, format string) ([]byte, string, error)
}

type Handler struct {
	store           UserStore
	coord           Coordinator
	audio           AudioFetcher
	jwtSecret       string
	defaultLanguage string
}

func NewHandler(store UserStore, coord Coordinator, audio AudioFetcher, jwtSecret, defaultLanguage string) *Handler {
	if defaultLanguage == "" {
		defaultLanguage = "lez"
	}
	return &Handler{
		store:           store,
		coord:           coord,
		audio:           audio,
		jwtSecret:       jwtSecret,
		defaultLanguage: defaultLanguage,
	}
}

// Register handles POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if err := validatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	taken, err := h.store.UsernameTaken(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	if taken {
		respondError(w, http.StatusBadRequest, "Username is already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	userID, err := h.store.CreateUser(r.Context(), req.Username, string(hash))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	respondJSON(w, http.StatusOK, models.RegisterResponse{Status: "success", UserID: userID})
}

// validatePassword enforces the account password rules: at least 8
// characters, at least one digit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	for _, c := range password {
		if unicode.IsDigit(c) {
			return nil
		}
	}
	return fmt.Errorf("password must contain at least one digit")
}

// Login handles POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// Best-effort; a failed stamp never blocks a valid login.
	_ = h.store.TouchLastLogin(r.Context(), user.ID)

	token, err := IssueToken(h.jwtSecret, user.ID, user.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	respondJSON(w, http.StatusOK, models.LoginResponse{Status: "success", Token: token})
}

// Logout handles POST /api/logout. Tokens are stateless, so logout is a
// client-side discard; the endpoint exists for UI parity.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Me handles GET /api/user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"username": user.Username})
}

// History handles GET /api/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	entries, err := h.store.GetHistory(r.Context(), user.ID, historyLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	type historyItem struct {
		Date     string   `json:"date"`
		Text     string   `json:"text"`
		Language string   `json:"language"`
		Status   string   `json:"status"`
		AudioURL *string  `json:"audio_path,omitempty"`
		Duration *float64 `json:"duration,omitempty"`
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		item := historyItem{
			Date:     e.Date.Format("02.01.2006 15:04"),
			Text:     e.Text,
			Language: e.Language,
			Status:   string(e.Status),
			Duration: e.Duration,
		}
		if e.AudioPath != nil {
			url := "/api/audio/" + *e.AudioPath
			item.AudioURL = &url
		}
		items = append(items, item)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"history": items})
}

// Synthesize handles POST /api/synthesize
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req models.SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "Text is required")
		return
	}

	language := req.Language
	if language == "" {
		language = h.defaultLanguage
	}

	taskID, err := h.coord.Submit(r.Context(), req.Text, language, user.ID)
	if err != nil {
		if errors.Is(err, coordinator.ErrQueueFull) {
			respondError(w, http.StatusServiceUnavailable, "Synthesis queue is full, try again later")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to queue synthesis")
		return
	}

	respondJSON(w, http.StatusOK, models.SynthesizeResponse{TaskID: taskID, Status: "queued"})
}

// TaskStatus handles GET /api/task/{taskID}. A success result streams
// the audio payload and is consumed; subsequent polls read as processing.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	state := h.coord.Poll(taskID)

	switch state.Status {
	case coordinator.TaskStatusError:
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  state.Error,
		})

	case coordinator.TaskStatusSuccess:
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="speech.wav"`)
		w.WriteHeader(http.StatusOK)
		w.Write(state.AudioData)

	default:
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "processing",
			"task_id": taskID,
		})
	}
}

// Audio handles GET /api/audio/{filename}?format=wav|mp3
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	filename := chi.URLParam(r, "filename")
	format := r.URL.Query().Get("format")

	data, contentType, err := h.audio.Fetch(r.Context(), filename, user.ID, format)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrInvalidFilename):
			respondError(w, http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, delivery.ErrUnsupportedFormat):
			respondError(w, http.StatusBadRequest, "Unsupported audio format")
		case errors.Is(err, delivery.ErrUnauthorized):
			respondError(w, http.StatusForbidden, "Unauthorized access to audio file")
		case errors.Is(err, delivery.ErrNotFound):
			respondError(w, http.StatusNotFound, "Audio file not found")
		default:
			respondError(w, http.StatusInternalServerError, "Audio conversion failed")
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
