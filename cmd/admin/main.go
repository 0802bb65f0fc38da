package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"dashEditor/internal/auth"
	"dashEditor/internal/codec"
	"dashEditor/internal/config"
	"dashEditor/internal/configfile"
	"dashEditor/internal/database"
	"dashEditor/internal/storage"
)

const usage = `用法:
  admin password [-password <pw>]   生成 EDITOR_PASSWORD_HASH 与 EDITOR_JWT_SECRET
  admin check [-file <path>]        校验配置文件能否被解析
  admin migrate [db flags]          创建或更新写入日志表
  admin backups [-day <yyyy-mm-dd>] 列出某天的异地备份（默认今天）
  admin backups -get <key>          将备份内容输出到标准输出
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "password":
		runPassword(args)
	case "check":
		runCheck(args)
	case "migrate":
		runMigrate(args)
	case "backups":
		runBackups(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runPassword(args []string) {
	fs := flag.NewFlagSet("password", flag.ExitOnError)
	password := fs.String("password", "", "编辑密码（可选，留空则随机生成）")
	_ = fs.Parse(args)

	pw := strings.TrimSpace(*password)
	generated := pw == ""
	if generated {
		var err error
		pw, err = generateRandomSecret(18)
		if err != nil {
			log.Fatalf("generate password: %v", err)
		}
	}

	hashed, err := auth.HashPassword(pw)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	secret, err := generateRandomSecret(32)
	if err != nil {
		log.Fatalf("generate jwt secret: %v", err)
	}

	if generated {
		fmt.Printf("编辑密码: %s\n", pw)
		fmt.Printf("提示：该密码仅显示一次。\n")
	}
	fmt.Printf("EDITOR_PASSWORD_HASH='%s'\n", hashed)
	fmt.Printf("EDITOR_JWT_SECRET='%s'\n", secret)
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	path := fs.String("file", "", "配置文件路径（可选，默认读 DASHBOARD_CONFIG_PATH）")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		p = os.Getenv("DASHBOARD_CONFIG_PATH")
	}
	if p == "" {
		p = "dashboard.yml"
	}

	text, err := configfile.New(p).Read()
	if err != nil {
		log.Fatalf("read %s: %v", p, err)
	}

	doc, decodeErr := codec.Decode(text)
	if decodeErr != nil {
		fmt.Printf("%s: %v\n", p, decodeErr)
		os.Exit(1)
	}
	if err := doc.Validate(); err != nil {
		fmt.Printf("%s: %v\n", p, err)
		os.Exit(1)
	}

	total, deactivated := doc.WidgetCount()
	fmt.Printf("%s: ok (%d pages, %d widgets, %d deactivated)\n", p, len(doc.Pages), total, deactivated)
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	var (
		dbHost  = fs.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort  = fs.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName  = fs.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser  = fs.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass  = fs.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode = fs.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	_ = fs.Parse(args)

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	fmt.Println("写入日志表已就绪。")
}

func runBackups(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	var (
		day   = fs.String("day", "", "日期 yyyy-mm-dd（可选，默认今天 UTC）")
		get   = fs.String("get", "", "要读取的备份对象键（可选）")
		limit = fs.Int("limit", 100, "最多列出的对象数量")
	)
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.MinIO.Enabled {
		log.Fatal("MINIO_ENABLED=true is required to read offsite backups")
	}
	client, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if key := strings.TrimSpace(*get); key != "" {
		obj, err := client.GetObject(ctx, key)
		if err != nil {
			log.Fatalf("get backup: %v", err)
		}
		defer obj.Close()
		if _, err := io.Copy(os.Stdout, obj); err != nil {
			if storage.IsNoSuchKey(err) {
				log.Fatalf("备份 %s 不存在", key)
			}
			log.Fatalf("read backup %s: %v", key, err)
		}
		return
	}

	when := time.Now().UTC()
	if d := strings.TrimSpace(*day); d != "" {
		when, err = time.Parse("2006-01-02", d)
		if err != nil {
			log.Fatalf("parse day: %v", err)
		}
	}

	prefix := storage.BackupDayPrefix(when)
	objects, err := client.ListObjects(ctx, prefix, *limit)
	if err != nil {
		log.Fatalf("list backups: %v", err)
	}
	if len(objects) == 0 {
		fmt.Printf("%s 下没有备份。\n", prefix)
		return
	}
	for _, object := range objects {
		fmt.Printf("%s\t%d\t%s\n", object.LastModified.UTC().Format(time.RFC3339), object.Size, object.Key)
	}
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}

func generateRandomSecret(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
