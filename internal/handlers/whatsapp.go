package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/twiml"

	"github.com/darlynton/ev-assistant-bot/internal/services"
	"github.com/darlynton/ev-assistant-bot/internal/session"
)

// WhatsAppHandler handles WhatsApp webhook requests for both wire variants:
// the Meta Cloud API JSON envelope and Twilio's form-encoded payload.
type WhatsAppHandler struct {
	sessions    *session.Manager
	engine      *services.Engine
	metaSender  services.Sender
	twilio      *services.TwilioService
	verifyToken string
}

// NewWhatsAppHandler creates a new WhatsApp handler. twilioService may be nil
// when Twilio credentials are absent; the dev send endpoint then degrades.
func NewWhatsAppHandler(
	sessions *session.Manager,
	engine *services.Engine,
	metaSender services.Sender,
	twilioService *services.TwilioService,
	verifyToken string,
) *WhatsAppHandler {
	return &WhatsAppHandler{
		sessions:    sessions,
		engine:      engine,
		metaSender:  metaSender,
		twilio:      twilioService,
		verifyToken: verifyToken,
	}
}

// HandleVerification answers the Meta webhook subscription handshake: echo
// the challenge when the mode is "subscribe" and the token matches.
func (h *WhatsAppHandler) HandleVerification(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		log.Println("✅ Webhook verified!")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// HandleWebhook processes incoming WhatsApp messages. Malformed or
// non-message payloads are acknowledged with 200 and no reply.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	if c.Is("json") {
		return h.handleMetaWebhook(c)
	}
	return h.handleTwilioWebhook(c)
}

// --- Variant A: Meta Cloud API JSON envelope ---

type metaEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []metaMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaMessage struct {
	From string `json:"from"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

func (h *WhatsAppHandler) handleMetaWebhook(c *fiber.Ctx) error {
	var envelope metaEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	msg, ok := normalizeMeta(envelope)
	if !ok {
		// Status callback or other non-message event, acknowledge only
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp message from %s: %s", msg.SenderID, msg.Text)

	var replies []string
	h.sessions.With(msg.SenderID, time.Now(), func(s *session.Session) {
		replies = h.engine.Handle(s, msg)
	})

	for _, reply := range replies {
		if err := h.metaSender.SendWhatsAppMessage(msg.SenderID, reply); err != nil {
			log.Printf("❌ Failed to send WhatsApp response: %v", err)
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// normalizeMeta maps the Cloud API envelope to a canonical message. A
// location share becomes "lat,lon" text; non-message events report !ok.
func normalizeMeta(envelope metaEnvelope) (services.Message, bool) {
	if envelope.Object != "whatsapp_business_account" || len(envelope.Entry) == 0 {
		return services.Message{}, false
	}
	changes := envelope.Entry[0].Changes
	if len(changes) == 0 || len(changes[0].Value.Messages) == 0 {
		return services.Message{}, false
	}

	m := changes[0].Value.Messages[0]
	if m.From == "" {
		return services.Message{}, false
	}

	var raw string
	switch {
	case m.Text != nil:
		raw = strings.TrimSpace(m.Text.Body)
	case m.Location != nil:
		raw = fmt.Sprintf("%v,%v", m.Location.Latitude, m.Location.Longitude)
	}
	if raw == "" {
		return services.Message{}, false
	}

	return services.Message{
		SenderID: "whatsapp:+" + m.From,
		Text:     strings.ToLower(raw),
		RawText:  raw,
	}, true
}

// --- Variant B: Twilio form-encoded payload ---

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // WhatsApp number (whatsapp:+447700900000)
	To         string `form:"To"`   // Your Twilio number
	Body       string `form:"Body"` // Message text
	Latitude   string `form:"Latitude"`
	Longitude  string `form:"Longitude"`
}

func (h *WhatsAppHandler) handleTwilioWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return sendTwiML(c, nil)
	}

	msg, ok := normalizeTwilio(payload)
	if !ok {
		return sendTwiML(c, nil)
	}

	log.Printf("📱 WhatsApp message from %s: %s", msg.SenderID, msg.Text)

	var replies []string
	h.sessions.With(msg.SenderID, time.Now(), func(s *session.Session) {
		replies = h.engine.Handle(s, msg)
	})

	return sendTwiML(c, replies)
}

// normalizeTwilio maps the form payload to a canonical message. Sender and
// text must both be present; a location share becomes "lat,lon" text.
func normalizeTwilio(payload TwilioWebhookPayload) (services.Message, bool) {
	if payload.From == "" {
		return services.Message{}, false
	}

	raw := strings.TrimSpace(payload.Body)
	if raw == "" && payload.Latitude != "" && payload.Longitude != "" {
		raw = payload.Latitude + "," + payload.Longitude
	}
	if raw == "" {
		return services.Message{}, false
	}

	return services.Message{
		SenderID: payload.From,
		Text:     strings.ToLower(raw),
		RawText:  raw,
	}, true
}

// sendTwiML encodes the replies as one MessagingResponse document. A nil or
// empty reply list produces an empty acknowledge document.
func sendTwiML(c *fiber.Ctx, replies []string) error {
	verbs := make([]twiml.Element, 0, len(replies))
	for _, reply := range replies {
		verbs = append(verbs, &twiml.MessagingMessage{Body: reply})
	}

	doc, err := twiml.Messages(verbs)
	if err != nil {
		log.Printf("❌ Failed to encode TwiML response: %v", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXML)
	return c.Status(fiber.StatusOK).SendString(doc)
}

// --- Dev send endpoint ---

// DevSendPayload is the body for the development send endpoint.
type DevSendPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// HandleDevSend pushes a WhatsApp message via the Twilio REST API. For
// development use only.
func (h *WhatsAppHandler) HandleDevSend(c *fiber.Ctx) error {
	if h.twilio == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Twilio is not configured",
		})
	}

	var payload DevSendPayload
	if err := c.BodyParser(&payload); err != nil || payload.To == "" || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid send payload",
		})
	}

	if err := h.twilio.SendWhatsAppMessage(payload.To, payload.Message); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
