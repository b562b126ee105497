// Admin operations against the Text2Quiz DynamoDB table: manage users,
// API keys, and inspect usage.
//
// Usage:
//
//	go run ./scripts/admin user-create --email ana@example.com --name "Ana"
//	go run ./scripts/admin user-approve --user <id>
//	go run ./scripts/admin user-suspend --user <id>
//	go run ./scripts/admin user-list
//	go run ./scripts/admin key-create --user <id> --name "laptop"
//	go run ./scripts/admin key-revoke --prefix <keyPrefix>
//	go run ./scripts/admin key-list --user <id>
//	go run ./scripts/admin usage --user <id> [--month 2026-08]
//	go run ./scripts/admin quizzes --user <id>
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/oklog/ulid/v2"

	"github.com/text2quiz/text2quiz/internal/mcpserver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var (
		tableName = fs.String("table", envOr("DYNAMODB_TABLE", "text2quiz-prod"), "DynamoDB table name")
		region    = fs.String("region", "us-east-1", "AWS region")
		userID    = fs.String("user", "", "User ID")
		email     = fs.String("email", "", "User email")
		name      = fs.String("name", "", "User or key name")
		prefix    = fs.String("prefix", "", "API key prefix")
		month     = fs.String("month", time.Now().UTC().Format("2006-01"), "Usage month (YYYY-MM)")
	)
	fs.Parse(os.Args[2:])

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	store := mcpserver.NewStore(dynamodb.NewFromConfig(cfg), *tableName)

	switch cmd {
	case "user-create":
		requireFlags(map[string]string{"email": *email, "name": *name})
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		if err := store.CreateUser(ctx, id, *email, *name); err != nil {
			log.Fatalf("create user: %v", err)
		}
		fmt.Printf("Created user %s (%s) with status=pending\n", id, *email)
		fmt.Println("Approve with: admin user-approve --user " + id)

	case "user-approve":
		requireFlags(map[string]string{"user": *userID})
		if err := store.ApproveUser(ctx, *userID); err != nil {
			log.Fatalf("approve user: %v", err)
		}
		fmt.Printf("User %s approved\n", *userID)

	case "user-suspend":
		requireFlags(map[string]string{"user": *userID})
		if err := store.SuspendUser(ctx, *userID); err != nil {
			log.Fatalf("suspend user: %v", err)
		}
		fmt.Printf("User %s suspended\n", *userID)

	case "user-list":
		users, err := store.ListUsers(ctx)
		if err != nil {
			log.Fatalf("list users: %v", err)
		}
		fmt.Printf("%-28s %-28s %-10s %-6s %s\n", "ID", "EMAIL", "STATUS", "ROLE", "CREATED")
		for _, u := range users {
			id := u.PK[len("USER#"):]
			fmt.Printf("%-28s %-28s %-10s %-6s %s\n", id, u.Email, u.Status, u.Role, u.CreatedAt)
		}

	case "user-get":
		var user *mcpserver.UserRecord
		switch {
		case *userID != "":
			user, err = store.GetUser(ctx, *userID)
		case *email != "":
			user, err = store.GetUserByEmail(ctx, *email)
		default:
			log.Fatal("user-get requires --user or --email")
		}
		if err != nil {
			log.Fatalf("get user: %v", err)
		}
		if user == nil {
			log.Fatal("user not found")
		}
		fmt.Printf("ID:      %s\nEmail:   %s\nName:    %s\nStatus:  %s\nRole:    %s\nCreated: %s\n",
			user.PK[len("USER#"):], user.Email, user.Name, user.Status, user.Role, user.CreatedAt)

	case "key-create":
		requireFlags(map[string]string{"user": *userID, "name": *name})
		plaintext, keyPrefix, err := store.CreateAPIKey(ctx, *userID, *name)
		if err != nil {
			log.Fatalf("create API key: %v", err)
		}
		fmt.Printf("API key created (prefix %s). Save it now, it is not shown again:\n\n  %s\n", keyPrefix, plaintext)

	case "key-revoke":
		requireFlags(map[string]string{"prefix": *prefix})
		if err := store.RevokeAPIKey(ctx, *prefix); err != nil {
			log.Fatalf("revoke API key: %v", err)
		}
		fmt.Printf("API key %s revoked\n", *prefix)

	case "key-list":
		requireFlags(map[string]string{"user": *userID})
		keys, err := store.ListAPIKeys(ctx, *userID)
		if err != nil {
			log.Fatalf("list API keys: %v", err)
		}
		fmt.Printf("%-12s %-16s %-8s %-22s %s\n", "PREFIX", "NAME", "STATUS", "CREATED", "LAST USED")
		for _, k := range keys {
			fmt.Printf("%-12s %-16s %-8s %-22s %s\n", k.PK[len("APIKEY#"):], k.Name, k.Status, k.CreatedAt, k.LastUsedAt)
		}

	case "usage":
		requireFlags(map[string]string{"user": *userID})
		usage, err := store.GetMonthlyUsage(ctx, *userID, *month)
		if err != nil {
			log.Fatalf("get usage: %v", err)
		}
		fmt.Printf("Usage for %s in %s:\n", *userID, *month)
		fmt.Printf("  Documents:   %d\n", usage.DocumentCount)
		fmt.Printf("  Questions:   %d\n", usage.TotalQuestions)
		fmt.Printf("  Input chars: %d\n", usage.TotalInputChars)

	case "quizzes":
		requireFlags(map[string]string{"user": *userID})
		items, err := store.ListUserQuizzes(ctx, *userID, 50)
		if err != nil {
			log.Fatalf("list quizzes: %v", err)
		}
		fmt.Printf("%-28s %-12s %-5s %-30s %s\n", "QUIZ ID", "STATUS", "QS", "TITLE", "CREATED")
		for _, q := range items {
			fmt.Printf("%-28s %-12s %-5d %-30s %s\n", q.QuizID, q.Status, q.QuestionCount, truncate(q.Title, 30), q.CreatedAt)
		}

	default:
		usage()
	}
}

func requireFlags(required map[string]string) {
	for flagName, val := range required {
		if val == "" {
			log.Fatalf("--%s is required", flagName)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  user-create   --email <email> --name <name>
  user-approve  --user <id>
  user-suspend  --user <id>
  user-get      --user <id> | --email <email>
  user-list
  key-create    --user <id> --name <name>
  key-revoke    --prefix <keyPrefix>
  key-list      --user <id>
  usage         --user <id> [--month YYYY-MM]
  quizzes       --user <id>

flags common to all commands: --table, --region`)
	os.Exit(2)
}
