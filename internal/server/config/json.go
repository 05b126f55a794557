package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/yggkeeper/internal/flagx"
	"github.com/dmitrijs2005/yggkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "1s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`
	LogLevel         string `json:"log_level"`

	RootURL                string   `json:"root_url"`
	ServerName             string   `json:"server_name"`
	SkinDomains            []string `json:"skin_domains"`
	LoginWithCharacterName bool     `json:"login_with_character_name"`

	TokenCapacity            int            `json:"token_capacity"`
	TokenFullyExpiredTTL     timex.Duration `json:"token_fully_expired_ttl"`
	TokenPartiallyExpiredTTL timex.Duration `json:"token_partially_expired_ttl"`
	EnablePartialExpiry      bool           `json:"token_enable_partial_expiry"`
	OnlyLastSessionAvailable bool           `json:"token_only_last_session"`

	LoginCoolDown       timex.Duration `json:"login_cooldown"`
	EmailCoolDown       timex.Duration `json:"email_cooldown"`
	JoinTimeout         timex.Duration `json:"join_timeout"`
	VerificationCodeTTL timex.Duration `json:"verification_code_ttl"`
	CaptchaTTL          timex.Duration `json:"captcha_ttl"`
	VerifyImageDir      string         `json:"verify_image_dir"`

	RedisAddr string `json:"redis_addr"`

	TextureBackend string `json:"texture_backend"`
	TextureDir     string `json:"texture_dir"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	SignatureKeyFile string `json:"signature_key_file"`

	UpstreamEnabled      bool   `json:"upstream_enabled"`
	UpstreamHasJoinedURL string `json:"upstream_has_joined_url"`

	SMTPAddr     string `json:"smtp_addr"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:         c.EndpointAddrHTTP,
		EndpointAddrGRPC:         c.EndpointAddrGRPC,
		DatabaseDSN:              c.DatabaseDSN,
		SecretKey:                c.SecretKey,
		LogLevel:                 c.LogLevel,
		RootURL:                  c.RootURL,
		ServerName:               c.ServerName,
		SkinDomains:              c.SkinDomains,
		LoginWithCharacterName:   c.LoginWithCharacterName,
		TokenCapacity:            c.TokenCapacity,
		TokenFullyExpiredTTL:     timex.Duration{Duration: c.TokenFullyExpiredTTL},
		TokenPartiallyExpiredTTL: timex.Duration{Duration: c.TokenPartiallyExpiredTTL},
		EnablePartialExpiry:      c.EnablePartialExpiry,
		OnlyLastSessionAvailable: c.OnlyLastSessionAvailable,
		LoginCoolDown:            timex.Duration{Duration: c.LoginCoolDown},
		EmailCoolDown:            timex.Duration{Duration: c.EmailCoolDown},
		JoinTimeout:              timex.Duration{Duration: c.JoinTimeout},
		VerificationCodeTTL:      timex.Duration{Duration: c.VerificationCodeTTL},
		CaptchaTTL:               timex.Duration{Duration: c.CaptchaTTL},
		VerifyImageDir:           c.VerifyImageDir,
		RedisAddr:                c.RedisAddr,
		TextureBackend:           c.TextureBackend,
		TextureDir:               c.TextureDir,
		S3RootUser:               c.S3RootUser,
		S3RootPassword:           c.S3RootPassword,
		S3Bucket:                 c.S3Bucket,
		S3Region:                 c.S3Region,
		S3BaseEndpoint:           c.S3BaseEndpoint,
		SignatureKeyFile:         c.SignatureKeyFile,
		UpstreamEnabled:          c.UpstreamEnabled,
		UpstreamHasJoinedURL:     c.UpstreamHasJoinedURL,
		SMTPAddr:                 c.SMTPAddr,
		SMTPUser:                 c.SMTPUser,
		SMTPPassword:             c.SMTPPassword,
		SMTPFrom:                 c.SMTPFrom,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.LogLevel = j.LogLevel
	c.RootURL = j.RootURL
	c.ServerName = j.ServerName
	c.SkinDomains = j.SkinDomains
	c.LoginWithCharacterName = j.LoginWithCharacterName
	c.TokenCapacity = j.TokenCapacity
	c.TokenFullyExpiredTTL = j.TokenFullyExpiredTTL.Duration
	c.TokenPartiallyExpiredTTL = j.TokenPartiallyExpiredTTL.Duration
	c.EnablePartialExpiry = j.EnablePartialExpiry
	c.OnlyLastSessionAvailable = j.OnlyLastSessionAvailable
	c.LoginCoolDown = j.LoginCoolDown.Duration
	c.EmailCoolDown = j.EmailCoolDown.Duration
	c.JoinTimeout = j.JoinTimeout.Duration
	c.VerificationCodeTTL = j.VerificationCodeTTL.Duration
	c.CaptchaTTL = j.CaptchaTTL.Duration
	c.VerifyImageDir = j.VerifyImageDir
	c.RedisAddr = j.RedisAddr
	c.TextureBackend = j.TextureBackend
	c.TextureDir = j.TextureDir
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.SignatureKeyFile = j.SignatureKeyFile
	c.UpstreamEnabled = j.UpstreamEnabled
	c.UpstreamHasJoinedURL = j.UpstreamHasJoinedURL
	c.SMTPAddr = j.SMTPAddr
	c.SMTPUser = j.SMTPUser
	c.SMTPPassword = j.SMTPPassword
	c.SMTPFrom = j.SMTPFrom
}

// parseJson overlays values from the file named by -c/-config onto config.
// Keys missing from the file keep their current value. An unreadable file
// or invalid JSON panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
