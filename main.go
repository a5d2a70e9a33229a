package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"roomsync/server"
)

// roomsync 入口：加载存档，启动房间权威、定期存档与 HTTP + WebSocket 服务
func main() {
	cfg := server.DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :8080")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "snapshot file path")
	flag.StringVar(&cfg.LogPath, "log", cfg.LogPath, "log file path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.StringVar(&cfg.WebDir, "web", cfg.WebDir, "static files directory")
	flag.StringVar(&cfg.ObjectsPath, "objects", cfg.ObjectsPath, "optional JSON file with room objects")
	flag.DurationVar(&cfg.CheckpointInterval, "checkpoint", cfg.CheckpointInterval, "snapshot checkpoint interval")
	flag.Float64Var(&cfg.Limits.Rate, "msg-rate", cfg.Limits.Rate, "inbound messages per second per connection (0 disables)")
	flag.IntVar(&cfg.Limits.Burst, "msg-burst", cfg.Limits.Burst, "inbound message burst per connection")
	flag.Parse()

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogPath, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	store := server.NewFileStore(cfg.DatabasePath)
	snap, err := store.Load()
	if err != nil {
		// 存档损坏不致命：从空状态启动
		server.Log.Warnw("load snapshot failed, starting empty", "path", cfg.DatabasePath, "err", err)
	}
	registry := server.NewRegistry()
	registry.Restore(snap)

	objects, err := resolveObjects(cfg, snap)
	if err != nil {
		server.Log.Fatalw("load objects", "err", err)
	}

	metrics := server.NewMetrics()
	world := server.NewWorld(registry, objects, metrics, cfg.Limits)
	checkpointer := server.NewCheckpointer(registry, objects, store, metrics, cfg.CheckpointInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go world.Run(ctx)
	go checkpointer.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", world.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.WebDir)))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", world.HandleAdminConfig)
	mux.HandleFunc("/admin/units", world.HandleUnits)
	mux.HandleFunc("/metrics", world.HandleMetrics)
	mux.HandleFunc("/schema", server.HandleSchema)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("roomsync listening on %s; units=%d nextID=%d", cfg.Addr, len(snap.Units), snap.NextID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）：停止接入，停止房间，最后落盘
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	if err := shutdown(srv, cancel, checkpointer); err != nil {
		server.Log.Errorw("shutdown", "err", err)
	}
}

func shutdown(srv *http.Server, cancel context.CancelFunc, checkpointer *server.Checkpointer) error {
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	// 已升级的 WebSocket 连接不受 Shutdown 管理，随进程退出关闭
	err := srv.Shutdown(shutdownCtx)
	cancel()
	return multierr.Append(err, checkpointer.Flush())
}

// resolveObjects 物体来源优先级：-objects 文件 > 存档中的 objects > 默认箱子
func resolveObjects(cfg server.Config, snap server.Snapshot) (*server.ObjectRegistry, error) {
	objects := snap.Objects
	if cfg.ObjectsPath != "" {
		loaded, err := server.LoadObjectsFile(cfg.ObjectsPath)
		if err != nil {
			return nil, err
		}
		objects = loaded
	}
	if len(objects) == 0 {
		objects = server.DefaultObjects()
	}
	return server.NewObjectRegistry(objects)
}
