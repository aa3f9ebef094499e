package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

const (
	DefaultNode       = "pve2"
	DefaultTemplateID = 555
	DefaultMemory     = 2048
	DefaultCores      = 2
	DefaultLogLevel   = "warn"

	PortIP     = 8006
	PortDomain = 443
)

const (
	EnvHost        = "PVE_URL"
	EnvPort        = "PVE_PORT"
	EnvTokenUser   = "PVE_TOKEN_USER"
	EnvTokenSecret = "PVE_TOKEN_SECRET"
	EnvNode        = "PVE_NODE"
	EnvTemplateID  = "PVE_TEMPLATE_ID"
	EnvVerifySSL   = "PVE_VERIFY_SSL"
	EnvLogLevel    = "PVE_LOG_LEVEL"
	EnvConfigFile  = "PVE_CONFIG"
)

type AppConfig struct {
	Proxmox  *ProxmoxConfig
	LogLevel string
}

type ProxmoxConfig struct {
	Host        string
	Port        int
	TokenUser   string
	TokenSecret string
	Node        string
	VerifySSL   bool
	TemplateID  int
}

// Settings is one layer of configuration. Nil fields are unset and fall
// through to the next layer. Command-line flags and the YAML file are both
// read into Settings.
type Settings struct {
	Host        *string `yaml:"host"`
	Port        *int    `yaml:"port"`
	TokenUser   *string `yaml:"token_user"`
	TokenSecret *string `yaml:"token_secret"`
	Node        *string `yaml:"node"`
	VerifySSL   *bool   `yaml:"verify_ssl"`
	TemplateID  *int    `yaml:"template_id"`
	LogLevel    *string `yaml:"log_level"`
}

type MissingCredentialsError struct {
	Missing []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing credentials: %s", strings.Join(e.Missing, ", "))
}

func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &s, nil
}

// Resolve merges the configuration layers, highest precedence first:
// command-line flags, environment, config file, built-in defaults.
func Resolve(flags *Settings, lookupEnv func(string) (string, bool), file *Settings) (*AppConfig, error) {
	if flags == nil {
		flags = &Settings{}
	}
	if file == nil {
		file = &Settings{}
	}

	env, err := envSettings(lookupEnv)
	if err != nil {
		return nil, err
	}

	layers := []*Settings{flags, env, file}

	var missing []string
	host := first(layers, func(s *Settings) *string { return s.Host })
	if host == nil || *host == "" {
		missing = append(missing, EnvHost+" or --host")
	}
	tokenUser := first(layers, func(s *Settings) *string { return s.TokenUser })
	if tokenUser == nil || *tokenUser == "" {
		missing = append(missing, EnvTokenUser+" or --token-user")
	}
	tokenSecret := first(layers, func(s *Settings) *string { return s.TokenSecret })
	if tokenSecret == nil || *tokenSecret == "" {
		missing = append(missing, EnvTokenSecret+" or --token-secret")
	}
	if len(missing) > 0 {
		return nil, &MissingCredentialsError{Missing: missing}
	}

	hostname, embeddedPort := NormalizeHost(*host)

	port := first(layers, func(s *Settings) *int { return s.Port })
	if port == nil && embeddedPort != 0 {
		port = &embeddedPort
	}

	cfg := &ProxmoxConfig{
		Host:        hostname,
		Port:        ptr.Deref(port, DefaultPort(hostname)),
		TokenUser:   *tokenUser,
		TokenSecret: *tokenSecret,
		Node:        ptr.Deref(first(layers, func(s *Settings) *string { return s.Node }), DefaultNode),
		VerifySSL:   ptr.Deref(first(layers, func(s *Settings) *bool { return s.VerifySSL }), false),
		TemplateID:  ptr.Deref(first(layers, func(s *Settings) *int { return s.TemplateID }), DefaultTemplateID),
	}

	if _, err := cfg.Token(); err != nil {
		return nil, err
	}

	return &AppConfig{
		Proxmox:  cfg,
		LogLevel: ptr.Deref(first(layers, func(s *Settings) *string { return s.LogLevel }), DefaultLogLevel),
	}, nil
}

func first[T any](layers []*Settings, field func(*Settings) *T) *T {
	for _, l := range layers {
		if v := field(l); v != nil {
			return v
		}
	}
	return nil
}

func envSettings(lookupEnv func(string) (string, bool)) (*Settings, error) {
	s := &Settings{}
	if lookupEnv == nil {
		return s, nil
	}

	str := func(key string) *string {
		if v, ok := lookupEnv(key); ok && v != "" {
			return ptr.To(v)
		}
		return nil
	}

	s.Host = str(EnvHost)
	s.TokenUser = str(EnvTokenUser)
	s.TokenSecret = str(EnvTokenSecret)
	s.Node = str(EnvNode)
	s.LogLevel = str(EnvLogLevel)

	if v := str(EnvPort); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvPort, *v, err)
		}
		s.Port = &n
	}

	if v := str(EnvTemplateID); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvTemplateID, *v, err)
		}
		s.TemplateID = &n
	}

	if v := str(EnvVerifySSL); v != nil {
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvVerifySSL, *v, err)
		}
		s.VerifySSL = &b
	}

	return s, nil
}

// NormalizeHost strips any scheme, path and port from host. The port, when
// present, is returned separately.
func NormalizeHost(host string) (string, int) {
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")

	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}

	if h, p, err := net.SplitHostPort(host); err == nil {
		if port, err := strconv.Atoi(p); err == nil {
			return h, port
		}
		return h, 0
	}

	return host, 0
}

// DefaultPort is the API port assumed when none is configured: the
// Proxmox default for bare IP addresses, HTTPS for names behind a proxy.
func DefaultPort(host string) int {
	if net.ParseIP(host) != nil {
		return PortIP
	}
	return PortDomain
}

type Token struct {
	UserPart  string
	TokenName string
	Secret    string
}

// ID is the token identity in user@realm!name form.
func (t *Token) ID() string {
	return t.UserPart + "!" + t.TokenName
}

func (c *ProxmoxConfig) Token() (*Token, error) {
	user, name, ok := strings.Cut(c.TokenUser, "!")
	if !ok || user == "" || name == "" || strings.Contains(name, "!") {
		return nil, fmt.Errorf("invalid token user %q: expected user@realm!tokenname", c.TokenUser)
	}

	return &Token{UserPart: user, TokenName: name, Secret: c.TokenSecret}, nil
}

func (c *ProxmoxConfig) APIURL() string {
	return fmt.Sprintf("https://%s/api2/json", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}
