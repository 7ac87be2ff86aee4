package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(env string) Config {
	return Config{
		App:    AppConfig{Env: env, Port: 8080, PublicBaseURL: "https://hooks.example.com"},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "inbound"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret", JWTIssuer: "iss", JWTAudience: "aud"},
		Twilio: TwilioConfig{AuthToken: "tok"},
		Oracle: OracleConfig{URL: "http://oracle.local/v1/chat/completions"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig("production")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Oracle.Timeout != 4*time.Second {
		t.Fatalf("expected 4s oracle timeout default, got %s", c.Oracle.Timeout)
	}
	if c.Routing.SweepSchedule != "*/5 * * * *" {
		t.Fatalf("expected default sweep schedule, got %q", c.Routing.SweepSchedule)
	}
	if c.Routing.DedupTTL != 48*time.Hour {
		t.Fatalf("expected default dedup ttl, got %s", c.Routing.DedupTTL)
	}
}

func TestValidate_RejectsBadSweepSchedule(t *testing.T) {
	c := validConfig("local")
	c.Routing.SweepSchedule = "every five minutes"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "SWEEP_SCHEDULE") {
		t.Fatalf("expected sweep schedule error, got %v", err)
	}
}

func TestValidate_RejectsUnboundedOracleTimeout(t *testing.T) {
	c := validConfig("local")
	c.Oracle.Timeout = time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for oracle timeout above 10s")
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(`
vocabulary:
  greetings: [hi, hey, howdy]
  emergency: [emergency, "911"]
prompts:
  screen: "Press 1 to take this call."
first_contact_spam_threshold: 85
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(p.Vocabulary.Greetings) != 3 || p.Vocabulary.Emergency[1] != "911" {
		t.Fatalf("unexpected vocabulary: %+v", p.Vocabulary)
	}
	if p.Prompts.Screen == "" || p.FirstContactSpamThreshold != 85 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	if _, err := ParsePolicy([]byte("first_contact_spam_threshold: 140")); err == nil {
		t.Fatalf("expected threshold range error")
	}
}

func TestLoadPolicy_EmptyPath(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p.Vocabulary.Greetings) != 0 {
		t.Fatalf("expected zero policy")
	}
}

func TestEnvReader_CollectsParseErrors(t *testing.T) {
	vars := map[string]string{
		"APP_PORT":       "eighty",
		"ORACLE_TIMEOUT": "soon",
		"DEDUP_TTL":      " 2h ",
		"DB_PASSWORD":    " spaced ",
	}
	r := envReader{lookup: func(k string) string { return vars[k] }}

	if r.integer("APP_PORT", true) != 0 {
		t.Fatalf("expected zero for unparsable port")
	}
	r.integer("REDIS_PORT", true)
	if r.integer("REDIS_DB", false) != 0 {
		t.Fatalf("expected zero for unset optional int")
	}
	r.duration("ORACLE_TIMEOUT")
	if d := r.duration("DEDUP_TTL"); d != 2*time.Hour {
		t.Fatalf("expected trimmed duration, got %s", d)
	}
	if r.secret("DB_PASSWORD") != " spaced " {
		t.Fatalf("secrets must not be trimmed")
	}
	if len(r.errs) != 3 {
		t.Fatalf("expected 3 errors (bad port, missing port, bad duration), got %v", r.errs)
	}
}

func TestLoad_ReportsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "inbound")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ORACLE_URL", "http://oracle.local")
	t.Setenv("ORACLE_TIMEOUT", "fast")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ORACLE_TIMEOUT") {
		t.Fatalf("expected ORACLE_TIMEOUT error, got %v", err)
	}
}
