package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PR1MKO/iktato-backend/internal/envutil"
	"github.com/PR1MKO/iktato-backend/internal/logger"
)

// Config carries every tunable the server and scheduler read at startup.
// Environment variables win over the optional YAML file named by IKTATO_CONFIG.
type Config struct {
	Port        string `yaml:"port"`
	Mode        string `yaml:"mode"`
	InstanceDir string `yaml:"instance_dir"`

	PrimaryDBPath     string `yaml:"primary_db_path"`
	ExaminationDBPath string `yaml:"examination_db_path"`

	CaseUploadRoot          string `yaml:"case_upload_root"`
	InvestigationUploadRoot string `yaml:"investigation_upload_root"`
	TemplateSourceDir       string `yaml:"template_source_dir"`

	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
	MaxContentLength int64         `yaml:"max_content_length"`

	DeadlineWarnDays int  `yaml:"deadline_warn_days"`
	PreferHTTPS      bool `yaml:"prefer_https"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	MailSender   string `yaml:"mail_sender"`
}

func Load(log *logger.Logger) Config {
	cfg := Config{
		Port:             "8080",
		Mode:             "development",
		InstanceDir:      "instance",
		AccessTokenTTL:   time.Hour,
		IdempotencyTTL:   300 * time.Second,
		MaxContentLength: 16 << 20,
		DeadlineWarnDays: 14,
		SMTPPort:         587,
	}

	if path := os.Getenv("IKTATO_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Config file unreadable, using env/defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn("Config file parse failed, using env/defaults", "path", path, "error", err)
		}
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.Mode = envutil.String("LOG_MODE", cfg.Mode)
	cfg.InstanceDir = envutil.String("INSTANCE_DIR", cfg.InstanceDir)
	cfg.PrimaryDBPath = envutil.String("PRIMARY_DB_PATH", cfg.PrimaryDBPath)
	cfg.ExaminationDBPath = envutil.String("EXAMINATION_DB_PATH", cfg.ExaminationDBPath)
	cfg.CaseUploadRoot = envutil.String("CASE_UPLOAD_FOLDER", cfg.CaseUploadRoot)
	cfg.InvestigationUploadRoot = envutil.String("INVESTIGATION_UPLOAD_FOLDER", cfg.InvestigationUploadRoot)
	cfg.TemplateSourceDir = envutil.String("DOC_TEMPLATE_DIR", cfg.TemplateSourceDir)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.IdempotencyTTL = envutil.Duration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.MaxContentLength = envutil.Int64("MAX_CONTENT_LENGTH", cfg.MaxContentLength)
	cfg.DeadlineWarnDays = envutil.Int("DEADLINE_WARN_DAYS", cfg.DeadlineWarnDays)
	cfg.PreferHTTPS = envutil.Bool("PREFER_HTTPS", cfg.PreferHTTPS)
	cfg.SMTPHost = envutil.String("SMTP_SERVER", cfg.SMTPHost)
	cfg.SMTPPort = envutil.Int("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUser = envutil.String("SMTP_EMAIL", cfg.SMTPUser)
	cfg.SMTPPassword = envutil.String("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.MailSender = envutil.String("MAIL_DEFAULT_SENDER", cfg.MailSender)

	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "defaultsecret"
		log.Warn("JWT_SECRET_KEY not set, using insecure default")
	}
	if cfg.PrimaryDBPath == "" {
		cfg.PrimaryDBPath = filepath.Join(cfg.InstanceDir, "forensic_cases.db")
	}
	if cfg.ExaminationDBPath == "" {
		cfg.ExaminationDBPath = filepath.Join(cfg.InstanceDir, "examination.db")
	}
	if cfg.CaseUploadRoot == "" {
		cfg.CaseUploadRoot = filepath.Join(cfg.InstanceDir, "uploads_cases")
	}
	if cfg.InvestigationUploadRoot == "" {
		cfg.InvestigationUploadRoot = filepath.Join(cfg.InstanceDir, "uploads_investigations")
	}
	if cfg.TemplateSourceDir == "" {
		cfg.TemplateSourceDir = filepath.Join(cfg.InstanceDir, "autofill-word-do-not-edit")
	}
	return cfg
}

// EnsureDirs creates the instance and upload directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.InstanceDir, c.CaseUploadRoot, c.InvestigationUploadRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
