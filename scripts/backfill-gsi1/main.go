// Backfill GSI1 (the quiz list index) for existing QUIZ# items in
// DynamoDB that were written before the index existed.
//
// Usage:
//
//	go run ./scripts/backfill-gsi1 --dry-run          # preview changes
//	go run ./scripts/backfill-gsi1                     # apply changes
//	go run ./scripts/backfill-gsi1 --table my-table    # custom table name
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func main() {
	tableName := flag.String("table", "text2quiz-prod", "DynamoDB table name")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("us-east-1"))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := dynamodb.NewFromConfig(cfg)

	fmt.Printf("Table: %s | Dry run: %v\n", *tableName, *dryRun)

	var lastKey map[string]types.AttributeValue
	var scanned, updated, skipped int

	for {
		input := &dynamodb.ScanInput{
			TableName:        tableName,
			FilterExpression: aws.String("begins_with(PK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: "QUIZ#"},
			},
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := client.Scan(ctx, input)
		if err != nil {
			log.Fatalf("scan: %v", err)
		}

		for _, item := range result.Items {
			scanned++
			pk := attrStr(item, "PK")
			quizID := strings.TrimPrefix(pk, "QUIZ#")

			// Already indexed?
			if attrStr(item, "GSI1PK") == "QUIZZES" {
				skipped++
				continue
			}

			createdAt := attrStr(item, "createdAt")
			if createdAt == "" {
				log.Printf("SKIP %s: missing createdAt", quizID)
				skipped++
				continue
			}
			gsi1sk := createdAt + "#" + quizID

			action := "UPDATE"
			if *dryRun {
				action = "DRY-RUN"
			}
			fmt.Printf("[%s] %s: GSI1PK=QUIZZES GSI1SK=%s\n", action, quizID, gsi1sk)

			if !*dryRun {
				_, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
					TableName: tableName,
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: pk},
						"SK": &types.AttributeValueMemberS{Value: "METADATA"},
					},
					UpdateExpression: aws.String("SET GSI1PK = :g1pk, GSI1SK = :g1sk"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":g1pk": &types.AttributeValueMemberS{Value: "QUIZZES"},
						":g1sk": &types.AttributeValueMemberS{Value: gsi1sk},
					},
				})
				if err != nil {
					log.Printf("ERROR updating %s: %v", quizID, err)
					continue
				}
				updated++
			} else {
				updated++
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	fmt.Printf("\nDone. Scanned: %d, Updated: %d, Skipped (already indexed): %d\n", scanned, updated, skipped)
	if *dryRun {
		fmt.Println("(dry run - no changes written)")
		os.Exit(0)
	}
}

func attrStr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
