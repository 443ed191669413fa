package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"depohub/internal/util"
	"depohub/pkg/auth"
	"depohub/pkg/domain"
	"depohub/pkg/store"
)

// provision creates a participant account with a bcrypt-hashed password.
//
//	go run ./cmd/provision -email reporter@example.com -password '...' -role court_reporter
func main() {
	var (
		email     = flag.String("email", "", "participant email (required)")
		password  = flag.String("password", "", "initial password (required)")
		firstName = flag.String("first", "", "first name")
		lastName  = flag.String("last", "", "last name")
		role      = flag.String("role", string(domain.RoleAttorney), "participant role: attorney, witness, court_reporter, admin")
		dbURL     = flag.String("db", os.Getenv("DATABASE_URL"), "postgres connection URL (or DATABASE_URL)")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "email and password are required")
		flag.Usage()
		os.Exit(2)
	}
	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "database URL is required (-db or DATABASE_URL)")
		os.Exit(2)
	}
	parsedRole, ok := parseRole(*role)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	if err := auth.ValidatePassword(*password); err != nil {
		fmt.Fprintf(os.Stderr, "password rejected: %v\n", err)
		os.Exit(2)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewGormStore(*dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}

	user := domain.User{
		ID:           util.NewID(),
		Email:        *email,
		FirstName:    *firstName,
		LastName:     *lastName,
		PasswordHash: hash,
		Role:         parsedRole,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.SaveUser(user); err != nil {
		fmt.Fprintf(os.Stderr, "save user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user %s (%s) with role %s\n", user.Email, user.ID, user.Role)
}

func parseRole(raw string) (domain.ParticipantRole, bool) {
	switch domain.ParticipantRole(raw) {
	case domain.RoleAttorney, domain.RoleWitness, domain.RoleCourtReporter, domain.RoleAdmin:
		return domain.ParticipantRole(raw), true
	default:
		return "", false
	}
}
