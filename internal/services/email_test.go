package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsplit_app_echo/internal/config"
)

func TestResendMailerSendEmail(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	mailer := NewResendMailer(srv.URL, "re_test")
	err := mailer.SendEmail(context.Background(), Email{
		From:    "Strimo <recordatorios@strimoapp.site>",
		To:      []string{"ana@example.com"},
		Subject: "Recordatorio",
		HTML:    "<p>hola</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Recordatorio", got["subject"])
	assert.Equal(t, []interface{}{"ana@example.com"}, got["to"])
}

func TestResendMailerNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewResendMailer(srv.URL, "re_test").SendEmail(context.Background(), Email{To: []string{"a@b.co"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestResendMailerRequiresKey(t *testing.T) {
	err := NewResendMailer("http://unused", "").SendEmail(context.Background(), Email{To: []string{"a@b.co"}})
	assert.Error(t, err)
}

func TestSMTPMailerBuildsHTMLMessage(t *testing.T) {
	mailer := NewSMTPMailer(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: "587", SMTPUser: "u", SMTPPassword: "p"})

	var gotFrom, gotAddr string
	var gotMsg []byte
	mailer.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		return nil
	}

	err := mailer.SendEmail(context.Background(), Email{
		From:    "Strimo <recordatorios@strimoapp.site>",
		To:      []string{"ana@example.com"},
		Subject: "Pago pendiente",
		HTML:    "<p>hola</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "recordatorios@strimoapp.site", gotFrom)
	assert.True(t, strings.Contains(string(gotMsg), "Content-Type: text/html"))
	assert.True(t, strings.HasSuffix(string(gotMsg), "<p>hola</p>\r\n"))
}

func TestSMTPMailerRequiresCredentials(t *testing.T) {
	err := NewSMTPMailer(config.MailConfig{}).SendEmail(context.Background(), Email{To: []string{"a@b.co"}})
	assert.Error(t, err)
}
