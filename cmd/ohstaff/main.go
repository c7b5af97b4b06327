// Command ohstaff registers a staff member. Staff cannot sign up through the
// public API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Raytar/officehours"
	"github.com/Raytar/officehours/database"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	log := logrus.New()
	_ = godotenv.Load()

	dbPath := pflag.String("db-path", envOr("OFFICEHOURS_DB_PATH", officehours.DefaultDBPath), "Path to database file")
	number := pflag.Int64("number", 0, "Staff number")
	name := pflag.String("name", "", "Display name")
	email := pflag.String("email", "", "Email address used to sign in")
	password := pflag.String("password", "", "Initial password")
	cost := pflag.Int("bcrypt-cost", 0, "bcrypt cost (0 means the library default)")
	pflag.Parse()

	db, err := database.OpenDatabase(*dbPath, log)
	if err != nil {
		log.Fatalln("Failed to open database:", err)
	}
	defer db.Close()

	accounts := officehours.NewAccounts(db, officehours.BcryptHasher{Cost: *cost}, 0)
	staff, err := accounts.AddStaff(context.Background(), officehours.StaffRequest{
		StaffNumber: *number,
		Name:        *name,
		Email:       *email,
		Password:    *password,
	})
	if err != nil {
		log.Fatalln("Failed to add staff member:", err)
	}
	fmt.Printf("Added staff member %d (%s <%s>)\n", staff.Number, staff.Name, staff.Email)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
