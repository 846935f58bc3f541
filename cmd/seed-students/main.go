package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/database"
	"github.com/arstate/FAFA-BIMBEL/internal/logger"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
)

const (
	studentCount    = 20
	defaultPassword = "bimbeljaya"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	contentStore := store.NewPostgresStore(pool, nil, log)
	authService := service.NewAuthService(cfg)
	contentService := service.NewContentService(contentStore, log)
	userService := service.NewUserService(contentStore, authService, log)

	fmt.Println("=== Seeding Demo Class ===")

	class, err := contentService.CreateClass(ctx, &model.CreateClassRequest{
		Name:        "Kelas Demo",
		Description: "Kelas contoh untuk pengembangan",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create class")
	}
	fmt.Printf("Created class %s with access code %s\n", class.ID, class.AccessCode)

	week, err := contentService.AddWeek(ctx, class.ID, &model.CreateWeekRequest{Title: "Minggu 1"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create week")
	}

	if _, err := contentService.AddItem(ctx, class.ID, week.ID, &model.CreateItemRequest{
		Title:       "Pengantar Pecahan",
		Type:        model.ItemTypeMaterial,
		Content:     "Pecahan menyatakan bagian dari keseluruhan.",
		PreviewText: "Pecahan menyatakan bagian dari keseluruhan.",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to create material")
	}

	quiz, err := contentService.AddItem(ctx, class.ID, week.ID, &model.CreateItemRequest{
		Title:           "Kuis Pecahan",
		Type:            model.ItemTypeQuiz,
		DurationMinutes: 10,
		AICorrection:    true,
		DetailLevel:     model.DetailBrief,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quiz")
	}

	ref := model.ItemRef{ClassID: class.ID, WeekID: week.ID, ItemID: quiz.ID}
	questions := []model.CreateQuestionRequest{
		{Text: "1/2 + 1/4 = ?", Type: model.QuestionMultipleChoice, Options: []string{"3/4", "2/6", "1/8"}, CorrectAnswer: "3/4"},
		{Text: "Manakah yang lebih besar, 2/3 atau 3/5?", Type: model.QuestionMultipleChoice, Options: []string{"2/3", "3/5"}, CorrectAnswer: "2/3"},
		{Text: "Jelaskan cara menyamakan penyebut dua pecahan.", Type: model.QuestionEssay},
	}
	for i := range questions {
		if _, err := contentService.AddQuestion(ctx, ref, &questions[i]); err != nil {
			log.Fatal().Err(err).Msg("Failed to create question")
		}
	}
	fmt.Printf("Created quiz %s with %d questions\n", quiz.ID, len(questions))

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Lukman Hakim", "Maya Septiana", "Nanda Pratama",
		"Oki Setiana", "Putri Dian", "Rafi Ahmad", "Toni Setiawan", "Umi Kalsum",
	}

	successCount := 0
	for i := 0; i < studentCount; i++ {
		student, err := userService.CreateStudent(ctx, &model.CreateStudentRequest{
			Username: fmt.Sprintf("user%d", i+1),
			Name:     names[i],
			Password: defaultPassword,
		})
		if err != nil {
			if errors.Is(err, service.ErrUsernameTaken) {
				fmt.Printf("Skipping user%d: username taken\n", i+1)
				continue
			}
			fmt.Printf("Error creating student %s: %v\n", names[i], err)
			continue
		}
		if _, err := userService.JoinClass(ctx, student.ID, class.AccessCode); err != nil {
			fmt.Printf("Error joining %s to class: %v\n", student.Username, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students (password %q).\n", successCount, studentCount, defaultPassword)
}
