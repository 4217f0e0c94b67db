package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// registry backends
const (
	RegistryBackendFile     = "file"
	RegistryBackendBlob     = "blob"
	RegistryBackendPostgres = "postgres"
)

type Config struct {
	AppName         string
	Env             string // DEV (local; default), TEST, QA, PROD
	Debug           bool
	TestMode        bool
	Build           string
	FrontendBaseURL string

	Server struct {
		Addr            string
		DebugAddr       string
		ShutdownTimeout time.Duration
	}

	DefaultFromEmail mail.Address
	SendgridAPIKey   string
	RollbarToken     string

	// one webhook URL per destination channel
	Webhooks struct {
		Officer  string
		Member   string
		RSVP     string
		Announce string
	}

	Dispatch struct {
		URL   string
		Token string
	}

	Registry struct {
		Backend  string // file | blob | postgres; empty: derived from credentials
		FilePath string
	}

	Blob struct {
		BaseURL string
		Token   string
		Key     string
	}

	Markers struct {
		FilePath string
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Announce struct {
		Enabled     bool
		EventDate   string // fixed event key, e.g. "2024-11-22"
		EventStart  time.Time
		SelfBaseURL string // base URL the scheduler calls back into
		GraceWindow time.Duration
	}
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Karibu")
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugAddr", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("registryFilePath", filepath.Join("data", "registry.json"))
	v.SetDefault("markersFilePath", filepath.Join("data", "announce-markers.json"))
	v.SetDefault("blobKey", "registry.json")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("announceGraceWindow", 10*time.Minute)
	v.SetDefault("announceEventDate", "2024-11-22")
	v.SetDefault("announceEventStart", "2024-11-22T19:00:00-06:00")

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Build:            v.GetString("build"),
		FrontendBaseURL:  v.GetString("frontendBaseUrl"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
	}
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.DebugAddr = v.GetString("serverDebugAddr")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")

	conf.Webhooks.Officer = v.GetString("officerWebhookUrl")
	conf.Webhooks.Member = v.GetString("memberWebhookUrl")
	conf.Webhooks.RSVP = v.GetString("rsvpWebhookUrl")
	conf.Webhooks.Announce = v.GetString("announceWebhookUrl")

	conf.Dispatch.URL = v.GetString("dispatchUrl")
	conf.Dispatch.Token = v.GetString("dispatchToken")

	conf.Registry.Backend = v.GetString("registryBackend")
	conf.Registry.FilePath = v.GetString("registryFilePath")

	conf.Blob.BaseURL = v.GetString("blobBaseUrl")
	conf.Blob.Token = v.GetString("blobToken")
	conf.Blob.Key = v.GetString("blobKey")

	conf.Markers.FilePath = v.GetString("markersFilePath")

	conf.Database.Engine = v.GetString("dbEngine")
	conf.Database.Host = v.GetString("dbHost")
	conf.Database.Port = v.GetString("dbPort")
	conf.Database.Name = v.GetString("dbName")
	conf.Database.User = v.GetString("dbUser")
	conf.Database.Password = v.GetString("dbPassword")
	conf.Database.AdminUser = v.GetString("dbAdminUser")
	conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	conf.Database.DisableTLS = v.GetBool("dbDisableTls")

	conf.Announce.Enabled = v.GetBool("announceEnabled")
	conf.Announce.EventDate = v.GetString("announceEventDate")
	conf.Announce.SelfBaseURL = v.GetString("announceSelfBaseUrl")
	conf.Announce.GraceWindow = v.GetDuration("announceGraceWindow")
	if start := v.GetString("announceEventStart"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			log.Fatalf("config: parsing announceEventStart %q: %v", start, err)
		}
		conf.Announce.EventStart = t
	}

	return conf
}

// RegistryBackend resolves the effective registry backend: an explicit setting
// wins, otherwise the backend is selected by the presence of a credential.
func (conf *Config) RegistryBackend() string {
	if conf.Registry.Backend != "" {
		return conf.Registry.Backend
	}
	if conf.Blob.Token != "" {
		return RegistryBackendBlob
	}
	if conf.Database.Name != "" {
		return RegistryBackendPostgres
	}
	return RegistryBackendFile
}

func (conf *Config) DatabaseAddress() string {
	return conf.Database.Host + ":" + conf.Database.Port
}
