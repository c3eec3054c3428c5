package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/darlynton/ev-assistant-bot/internal/config"
)

// Sender delivers one outbound WhatsApp message to a recipient.
type Sender interface {
	SendWhatsAppMessage(to, message string) error
}

// MetaService sends WhatsApp messages through the Meta Cloud API.
type MetaService struct {
	accessToken   string
	phoneNumberID string
	timeout       time.Duration
}

// NewMetaService creates a Meta Cloud API sender.
func NewMetaService(cfg config.MetaConfig, timeout time.Duration) *MetaService {
	return &MetaService{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		timeout:       timeout,
	}
}

// Configured reports whether Cloud API credentials are present.
func (m *MetaService) Configured() bool {
	return m.accessToken != "" && m.phoneNumberID != ""
}

// SendWhatsAppMessage sends a text message via the Graph API. The
// "whatsapp:" channel prefix is stripped from the recipient if present.
func (m *MetaService) SendWhatsAppMessage(to, message string) error {
	if !m.Configured() {
		return fmt.Errorf("missing Meta Cloud API credentials")
	}

	u := fmt.Sprintf("https://graph.facebook.com/v18.0/%s/messages", m.phoneNumberID)

	payload := fiber.Map{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(to, "whatsapp:"),
		"text":              fiber.Map{"body": message},
	}

	agent := fiber.Post(u)
	agent.Timeout(m.timeout)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+m.accessToken)
	agent.JSON(payload)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		log.Printf("❌ Error sending message via Meta API: %v", errs[0])
		return errs[0]
	}
	if code < 200 || code >= 300 {
		log.Printf("❌ Meta API rejected message: %d %s", code, string(body))
		return fmt.Errorf("meta api returned status %d", code)
	}

	return nil
}
