// handlers/auth.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"p9e.in/fixflow/config"
	"p9e.in/fixflow/middleware"
	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

type registerReq struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	RoleID        int    `json:"role_id"`
	ParticipantID string `json:"participant_id"`
}

func Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if authz.RoleFromID(req.RoleID) == authz.RoleUnknown {
		http.Error(w, "unknown role_id", http.StatusBadRequest)
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		http.Error(w, "invalid participant_id", http.StatusBadRequest)
		return
	}

	var participant models.Participant
	if err := config.DB.First(&participant, "id = ? AND is_active = ?", participantID, true).Error; err != nil {
		http.Error(w, "participant not found", http.StatusBadRequest)
		return
	}

	// hash pw
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "error hashing password", http.StatusInternalServerError)
		return
	}
	u := models.User{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		PasswordHash:  string(hash),
		RoleID:        req.RoleID,
		ParticipantID: participant.ID,
		EntityType:    participant.Type,
		IsActive:      true,
	}
	if err := config.DB.Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "email already taken", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	RoleID        int       `json:"role_id"`
	Role          string    `json:"role"`
	ParticipantID uuid.UUID `json:"participant_id"`
	EntityType    string    `json:"entity_type"`
}

func Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	var u models.User
	if err := config.DB.Where("email = ? AND is_active = ?", req.Email, true).First(&u).Error; err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := middleware.GenerateToken(&u)
	if err != nil {
		http.Error(w, "couldn't create token", http.StatusInternalServerError)
		return
	}
	out := loginResp{
		Token: token,
		User: userPayload{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			RoleID:        u.RoleID,
			Role:          authz.RoleFromID(u.RoleID).String(),
			ParticipantID: u.ParticipantID,
			EntityType:    string(u.EntityType),
		},
	}
	json.NewEncoder(w).Encode(out)
}

// GetCurrentUser resolves the bearer token back to the account record
func GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var user models.User
	if err := config.DB.Preload("Participant").First(&user, "id = ?", claims.UserID).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	resp := map[string]interface{}{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"phone":          user.Phone,
		"role_id":        user.RoleID,
		"role":           authz.RoleFromID(user.RoleID).String(),
		"entity_type":    user.EntityType,
		"participant_id": user.ParticipantID,
	}
	if user.Participant != nil {
		resp["participant_name"] = user.Participant.Name
	}
	json.NewEncoder(w).Encode(resp)
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromRequest(r)
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	var req changePasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < 8 {
		http.Error(w, "new password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	var u models.User
	if err := config.DB.First(&u, "id = ?", actor.UserID).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "error hashing password", http.StatusInternalServerError)
		return
	}
	if err := config.DB.Model(&u).UpdateColumn("password_hash", string(hash)).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
