package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Rainyun  RainyunConfig
	Browser  BrowserConfig
	Captcha  CaptchaConfig
	Login    LoginConfig
	Reward   RewardConfig
	Notify   NotifyConfig
	Server   ServerConfig
	JWT      JWTConfig
	Database DatabaseConfig
	Schedule ScheduleConfig
	GitHub   GitHubConfig
}

type AppConfig struct {
	Version       string
	Debug         bool
	GitHubActions bool
	DelayMinSec   int
	DelayMaxSec   int
}

type RainyunConfig struct {
	User          string
	Pass          string
	LoginURL      string
	RewardURL     string
	SuccessMarker string
	APIBaseURL    string
	Precheck      bool
}

type BrowserConfig struct {
	Headless         bool
	ChromePath       string
	WindowWidth      int
	WindowHeight     int
	WaitTimeout      int // seconds, bounds every explicit wait
	DisableImages    bool
	StealthJSPath    string
	ScreenshotDir    string
	ScreenshotOnFail bool
}

type CaptchaConfig struct {
	OCRServiceURL   string
	BgNaturalWidth  int // natural width of the slide background image
	SlideCorrection int // empirical alignment offset subtracted from the distance
	MaxAttempts     int
	VerifyWaitSec   int
}

type LoginConfig struct {
	MaxRetries     int
	BackoffStepSec int
}

type RewardConfig struct {
	MaxRetries  int
	SettleDelay int // seconds to let the page finish rendering
}

type NotifyConfig struct {
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

type ServerConfig struct {
	Port          string
	Host          string
	Mode          string
	AdminUsername string
	AdminPassword string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
}

type ScheduleConfig struct {
	CronSpec string
}

type GitHubConfig struct {
	Token string
	Repo  string // owner/name, enables the startup update check
}

func LoadConfig() (*Config, error) {
	// Local runs keep credentials in a .env file; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("已加载 .env 配置文件")
	}

	config := &Config{
		App: AppConfig{
			Version:       "2.2",
			Debug:         getEnvAsBool("DEBUG", false),
			GitHubActions: getEnv("GITHUB_ACTIONS", "false") == "true",
			DelayMinSec:   getEnvAsInt("DELAY_MIN_SEC", 5),
			DelayMaxSec:   getEnvAsInt("DELAY_MAX_SEC", 600),
		},
		Rainyun: RainyunConfig{
			User:          getEnv("RAINYUN_USER", ""),
			Pass:          getEnv("RAINYUN_PASS", ""),
			LoginURL:      getEnv("RAINYUN_LOGIN_URL", "https://app.rainyun.com/auth/login"),
			RewardURL:     getEnv("RAINYUN_REWARD_URL", "https://app.rainyun.com/account/reward/earn"),
			SuccessMarker: getEnv("RAINYUN_SUCCESS_MARKER", "dashboard"),
			APIBaseURL:    getEnv("RAINYUN_API_BASE_URL", "https://api.v2.rainyun.com"),
			Precheck:      getEnvAsBool("PRECHECK_CREDENTIALS", false),
		},
		Browser: BrowserConfig{
			Headless:         getEnvAsBool("HEADLESS", false),
			ChromePath:       getEnv("CHROME_PATH", ""),
			WindowWidth:      getEnvAsInt("WINDOW_WIDTH", 1920),
			WindowHeight:     getEnvAsInt("WINDOW_HEIGHT", 1080),
			WaitTimeout:      getEnvAsInt("WAIT_TIMEOUT", 15),
			DisableImages:    getEnvAsBool("DISABLE_IMAGES", true),
			StealthJSPath:    getEnv("STEALTH_JS_PATH", "stealth.min.js"),
			ScreenshotDir:    getEnv("SCREENSHOT_DIR", "screenshots"),
			ScreenshotOnFail: getEnvAsBool("SCREENSHOT_ON_FAILURE", false),
		},
		Captcha: CaptchaConfig{
			OCRServiceURL:   getEnv("OCR_SERVICE_URL", "http://localhost:8888"),
			BgNaturalWidth:  getEnvAsInt("CAPTCHA_BG_NATURAL_WIDTH", 340),
			SlideCorrection: getEnvAsInt("CAPTCHA_SLIDE_CORRECTION", 30),
			MaxAttempts:     getEnvAsInt("CAPTCHA_MAX_ATTEMPTS", 5),
			VerifyWaitSec:   getEnvAsInt("CAPTCHA_VERIFY_WAIT", 3),
		},
		Login: LoginConfig{
			MaxRetries:     getEnvAsInt("LOGIN_MAX_RETRIES", 3),
			BackoffStepSec: getEnvAsInt("LOGIN_BACKOFF_STEP", 2),
		},
		Reward: RewardConfig{
			MaxRetries:  getEnvAsInt("EARN_MAX_RETRIES", 3),
			SettleDelay: getEnvAsInt("EARN_SETTLE_DELAY", 3),
		},
		Notify: NotifyConfig{
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Mode:          getEnv("SERVER_MODE", "release"),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "rainyun-autosign-secret-key"),
			ExpireTime: getEnvAsInt("JWT_EXPIRE_TIME", 24*3600),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USERNAME", "root"),
			Password: getEnv("DB_PASSWORD", "root"),
			Database: getEnv("DB_NAME", "rainyun_autosign"),
			Charset:  getEnv("DB_CHARSET", "utf8mb4"),
		},
		Schedule: ScheduleConfig{
			CronSpec: getEnv("SIGNIN_CRON", "0 30 8 * * *"),
		},
		GitHub: GitHubConfig{
			Token: getEnv("GITHUB_TOKEN", ""),
			Repo:  getEnv("GITHUB_REPO", ""),
		},
	}

	// GitHub Actions runners have no display; headless is not optional there.
	if config.App.GitHubActions {
		config.Browser.Headless = true
	}

	return config, nil
}

// ErrMissingCredentials marks the pre-flight configuration failure: the run
// must not touch the browser without both account fields.
var ErrMissingCredentials = errors.New("未设置用户名或密码，请在环境变量中设置RAINYUN_USER和RAINYUN_PASS")

// ValidateSignIn checks the fields a sign-in run cannot start without.
func (c *Config) ValidateSignIn() error {
	if c.Rainyun.User == "" || c.Rainyun.Pass == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
