// Command admin is a maintenance tool for the dead-letter table: list
// entries, purge old ones, or requeue a notification by deleting its
// dead-letter row (the sender can then redeliver the webhook).
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	list := flag.Bool("list", false, "list dead letters")
	purgeOlder := flag.Duration("purge-older-than", 0, "delete dead letters older than this duration")
	remove := flag.String("delete", "", "delete one dead letter by notification id")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL or -dsn is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch {
	case *list:
		rows, err := db.Query(`
			SELECT notification_id, hook_id, event_id, retry_count, reason, dropped_at
			FROM dead_letters ORDER BY dropped_at ASC LIMIT 100`)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query: %v\n", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var id, hook, event, reason string
			var retries int
			var dropped time.Time
			if err := rows.Scan(&id, &hook, &event, &retries, &reason, &dropped); err != nil {
				fmt.Fprintf(os.Stderr, "scan: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s  hook=%s event=%s retries=%d reason=%q dropped=%s\n",
				id, hook, event, retries, reason, dropped.Format(time.RFC3339))
		}

	case *purgeOlder > 0:
		res, err := db.Exec("DELETE FROM dead_letters WHERE dropped_at < $1", time.Now().Add(-*purgeOlder))
		if err != nil {
			fmt.Fprintf(os.Stderr, "purge: %v\n", err)
			os.Exit(1)
		}
		n, _ := res.RowsAffected()
		fmt.Printf("Purged %d dead letters\n", n)

	case *remove != "":
		res, err := db.Exec("DELETE FROM dead_letters WHERE notification_id = $1", *remove)
		if err != nil {
			fmt.Fprintf(os.Stderr, "delete: %v\n", err)
			os.Exit(1)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			fmt.Fprintf(os.Stderr, "no dead letter with id %s\n", *remove)
			os.Exit(1)
		}
		fmt.Println("Deleted")

	default:
		flag.Usage()
		os.Exit(2)
	}
}
