package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/database"
	"github.com/arstate/FAFA-BIMBEL/internal/logger"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL + Redis ─────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Running servers learn about the new account through Redis. Without it
	// the account is still created.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, live views will not see the new student")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// ─── Initialize Service ────────────────────────────────────────────
	contentStore := store.NewPostgresStore(pool, rdb, log)
	authService := service.NewAuthService(cfg)
	userService := service.NewUserService(contentStore, authService, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Student ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Username
	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// Optional access code to join right away
	fmt.Print("Enter Class Access Code (optional): ")
	code, _ := reader.ReadString('\n')
	code = strings.TrimSpace(code)

	// ─── Logic ─────────────────────────────────────────────────────────
	student, err := userService.CreateStudent(ctx, &model.CreateStudentRequest{
		Username: username,
		Name:     name,
		Password: password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			fmt.Println("Error: Username sudah dipakai!")
		case errors.Is(err, service.ErrInvalidUsername):
			fmt.Println("Error: Username may only contain letters and digits")
		default:
			log.Fatal().Err(err).Msg("Failed to create student")
		}
		return
	}

	if code != "" {
		class, err := userService.JoinClass(ctx, student.ID, code)
		if err != nil {
			fmt.Printf("Warning: could not join class with code %q: %v\n", code, err)
		} else {
			fmt.Printf("Joined class '%s'\n", class.Name)
		}
	}

	fmt.Printf("\nSuccess! Student '%s' (%s) created with ID: %s\n", student.Name, student.Username, student.ID)
}
