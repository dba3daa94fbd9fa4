package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ContactCollection stores every contact form submission
const ContactCollection = "contact_messages"

// ContactStore keeps contact form submissions
type ContactStore interface {
	Insert(ctx context.Context, msg *models.ContactMessage) error
}

// MongoContactStore writes submissions to MongoDB
type MongoContactStore struct {
	coll *mongo.Collection
}

func NewMongoContactStore(db *mongo.Database) *MongoContactStore {
	return &MongoContactStore{coll: db.Collection(ContactCollection)}
}

func (m *MongoContactStore) Insert(ctx context.Context, msg *models.ContactMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if _, err := m.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to save contact message: %w", err)
	}
	return nil
}

// ContactHandler stores a contact form submission and relays it by email
func (s *Server) ContactHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Contact API]", r)

	if r.Method != http.MethodPost {
		utils.RespondMethodNotAllowed(w, log, http.MethodPost)
		return
	}

	var msg models.ContactMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		utils.RespondError(w, log, "Missing required fields.", http.StatusBadRequest)
		return
	}
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)
	if err := s.validate.Struct(msg); err != nil {
		utils.RespondError(w, log, "Missing required fields.", http.StatusBadRequest)
		return
	}
	msg.CreatedAt = time.Now().UTC()

	if err := s.Contacts.Insert(r.Context(), &msg); err != nil {
		utils.RespondError(w, log, "Failed to submit form: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if s.ContactEmail == "" {
		log.Warn("CONTACT_EMAIL is not set, message stored without relay")
		utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	err := s.Mailer.Send(utils.Mail{
		ToEmail:     s.ContactEmail,
		ReplyTo:     msg.Email,
		Subject:     "New contact message from " + msg.Name,
		TextContent: fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", msg.Name, msg.Email, msg.Message),
	})
	if err != nil {
		utils.RespondError(w, log, "Failed to submit form: "+err.Error(), http.StatusInternalServerError)
		return
	}

	log.WithField("contact_id", msg.ID.Hex()).Info("Contact message submitted")
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
