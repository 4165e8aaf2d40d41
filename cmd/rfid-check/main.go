package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	commoncfg "wisefido-rfid/internal/common/config"
	"wisefido-rfid/internal/common/database"
	logpkg "wisefido-rfid/internal/common/logger"
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/repository"

	"go.uber.org/zap"
)

// rfid-check 排查上传历史
//
//	rfid-check            最近 20 次上传
//	rfid-check <TID>      该芯片的全部上传记录
func main() {
	log, err := logpkg.NewLogger(os.Getenv("LOG_LEVEL"), "console", "rfid-check")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 从环境变量获取数据库连接信息
	dbCfg := &commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "wisefido_rfid",
		SSLMode:  "disable",
	}
	dbCfg.LoadFromEnv("DB")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, dbCfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	repo := repository.NewBatchRepository(db, log)

	if len(os.Args) > 1 {
		tid := ledger.NormalizeTID(strings.Join(os.Args[1:], ""))
		if !ledger.ValidTID(tid) {
			log.Fatal("Invalid TID", zap.String("tid", tid))
		}
		if err := printChipHistory(ctx, repo, tid); err != nil {
			log.Fatal("Failed to check chip", zap.Error(err))
		}
		return
	}

	if err := printRecentBatches(ctx, repo); err != nil {
		log.Fatal("Failed to check batches", zap.Error(err))
	}
}

func printRecentBatches(ctx context.Context, repo *repository.BatchRepository) error {
	batches, err := repo.RecentBatches(ctx, 20)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("最近上传批次")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-36s %-20s %-6s %-12s %-6s %s\n", "batch_id", "uploaded_at", "mode", "username", "items", "status")
	fmt.Println(strings.Repeat("-", 80))
	for _, b := range batches {
		status := b.Status
		if b.Error != "" {
			status += " (" + b.Error + ")"
		}
		fmt.Printf("%-36s %-20s %-6s %-12s %-6d %s\n",
			b.BatchID, b.UploadedAt.Format("2006-01-02 15:04:05"), policy.Mode(b.Mode).Label(), b.Username, b.ItemCount, status)
	}
	fmt.Printf("\n共 %d 条\n", len(batches))
	return nil
}

func printChipHistory(ctx context.Context, repo *repository.BatchRepository, tid string) error {
	uploads, err := repo.ChipHistory(ctx, tid)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== 芯片 %s ===\n\n", ledger.FormatTID(tid))
	if len(uploads) == 0 {
		fmt.Println("没有上传记录")
		return nil
	}
	for _, u := range uploads {
		fmt.Printf("%s  %s  %s  %s\n", u.UploadedAt.Format("2006-01-02 15:04:05"), policy.Mode(u.Mode).Label(), u.Username, u.Status)
		if u.CategoryID != "" {
			fmt.Printf("    管道参数: %s\n", u.CategoryID)
		}
		if u.Longitude != nil {
			fmt.Printf("    经纬度: %.6f, %.6f\n", *u.Longitude, *u.Latitude)
		}
		if u.Address != "" {
			fmt.Printf("    项目地址: %s\n", u.Address)
		}
		fmt.Printf("    批次: %s\n", u.BatchID)
	}
	return nil
}
