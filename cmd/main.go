package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rainyun-autosign/internal/api/routes"
	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/executor"
	"rainyun-autosign/internal/models"
	"rainyun-autosign/internal/services"
	"rainyun-autosign/pkg/auth"
	"rainyun-autosign/pkg/chrome"
	"rainyun-autosign/pkg/database"
	"rainyun-autosign/pkg/github"
	"rainyun-autosign/pkg/notify"

	"github.com/gin-gonic/gin"
)

func main() {
	mode := flag.String("mode", "run", "运行模式: run(单次签到) 或 serve(常驻服务)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	log.Printf("🌧️ 雨云自动签到 v%s", cfg.App.Version)

	switch *mode {
	case "run":
		os.Exit(runOnce(cfg))
	case "serve":
		serve(cfg)
	default:
		log.Fatalf("未知运行模式: %s (支持 run / serve)", *mode)
	}
}

// runOnce executes a single sign-in and exits with the run's verdict,
// matching what the GitHub Actions workflow expects.
func runOnce(cfg *config.Config) int {
	notifier := notify.FromConfig(cfg.Notify)

	if err := cfg.ValidateSignIn(); err != nil {
		log.Printf("❌ %v", err)
		notify.Send(context.Background(), notifier, executor.TitleConfigError, err.Error())
		return 1
	}

	checkForUpdate(cfg)

	// Spread scheduled runs out so every instance doesn't hit the site
	// at the same second.
	if cfg.App.Debug {
		log.Println("🐞 DEBUG 模式，跳过随机延时")
	} else {
		delay := randomStartupDelay(cfg)
		log.Printf("⏳ 随机延时 %v 后开始签到", delay)
		time.Sleep(delay)
	}

	executor.InitExecutor(cfg, notifier, nil)
	defer chrome.GlobalManager.CleanupAll()

	result, err := executor.Global.Run(context.Background(), models.TriggerCLI)
	if err != nil {
		log.Printf("❌ 签到任务启动失败: %v", err)
		return 1
	}

	log.Printf("🏁 %s (耗时 %v)", result.Report.Title, result.Duration.Round(time.Second))
	return result.Report.ExitCode
}

// serve runs the daemon: REST API, WebSocket event stream, cron
// scheduler and optional MySQL persistence.
func serve(cfg *config.Config) {
	auth.InitJWT(cfg.JWT.Secret)

	if cfg.Database.Enabled {
		if err := database.InitDatabase(cfg); err != nil {
			log.Fatal("初始化数据库失败:", err)
		}
	} else {
		log.Println("💾 未启用数据库，签到记录仅保存在内存中")
	}

	notifier := notify.FromConfig(cfg.Notify)

	services.InitHub()
	executor.InitExecutor(cfg, notifier, services.GlobalHub)
	services.InitRecordStore(database.DB)
	services.InitRunner(cfg)

	if err := services.InitScheduler(cfg); err != nil {
		log.Fatal("初始化定时任务失败:", err)
	}
	services.InitStatusSync()

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(cfg)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("正在关闭服务...")

		if services.GlobalScheduler != nil {
			services.GlobalScheduler.Stop()
		}
		if services.GlobalStatusSync != nil {
			services.GlobalStatusSync.Stop()
		}
		if services.GlobalHub != nil {
			services.GlobalHub.Close()
		}
		chrome.GlobalManager.CleanupAll()

		log.Println("服务已关闭")
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🚀 服务启动于 %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatal("启动服务失败:", err)
	}
}

func randomStartupDelay(cfg *config.Config) time.Duration {
	min, max := cfg.App.DelayMinSec, cfg.App.DelayMaxSec
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}

// checkForUpdate compares the running version against the latest
// GitHub release. Purely informational: failures stay silent.
func checkForUpdate(cfg *config.Config) {
	if cfg.GitHub.Repo == "" {
		return
	}
	parts := strings.SplitN(cfg.GitHub.Repo, "/", 2)
	if len(parts) != 2 {
		return
	}

	client := github.NewClient(cfg.GitHub.Token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	release, err := client.LatestRelease(ctx, parts[0], parts[1])
	if err != nil {
		return
	}

	tag := strings.TrimPrefix(release.TagName, "v")
	if tag != "" && tag != cfg.App.Version {
		log.Printf("💡 发现新版本 %s (当前 v%s): %s", release.TagName, cfg.App.Version, release.HTMLURL)
	}
}
