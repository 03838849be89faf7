package configs

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/pkg/utils"
)

type Config struct {
	Port           string `mapstructure:"PORT" validate:"required"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS" validate:"required"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY" validate:"required,min=16"`
	OrderNoPrefix  string `mapstructure:"ORDER_NO_PREFIX" validate:"required"`

	// CukCuk POS. Empty values leave POS sync disabled; orders queue instead.
	PosBaseURL   string `mapstructure:"POS_BASE_URL"`
	PosDomain    string `mapstructure:"POS_DOMAIN"`
	PosSecretKey string `mapstructure:"POS_SECRET_KEY"`
	PosAppID     string `mapstructure:"POS_APP_ID"`
	PosBranchID  string `mapstructure:"POS_BRANCH_ID"`

	// Payment webhook secrets, per provider. A missing secret rejects every
	// webhook from that provider.
	SepayWebhookSecret string `mapstructure:"SEPAY_WEBHOOK_SECRET"`
	CassoWebhookToken  string `mapstructure:"CASSO_WEBHOOK_TOKEN"`
	VNPayHashSecret    string `mapstructure:"VNPAY_HASH_SECRET"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `mapstructure:"TELEGRAM_CHAT_ID"`
}

// Origins splits ALLOWED_ORIGINS into a clean slice.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ORDER_NO_PREFIX", "AMT")
	viper.SetDefault("POS_APP_ID", "CUKCUKOpenPlatform")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
