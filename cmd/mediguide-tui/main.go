package main

import (
	"context"
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mediguide/internal/app"
	"mediguide/internal/config"
	"mediguide/internal/logger"
	"mediguide/internal/models"
	"mediguide/internal/tui"
)

func main() {
	var (
		cfgPath   string
		name      string
		birthdate string
		bloodType string
		logFile   string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to secrets TOML (defaults to $MEDIGUIDE_CONFIG or .streamlit/secrets.toml)")
	flag.StringVar(&name, "name", "", "姓名")
	flag.StringVar(&birthdate, "birthdate", "", "出生年月日 (YYYY-MM-DD)")
	flag.StringVar(&bloodType, "blood-type", "", "血型 (A, B, AB, O)")
	flag.StringVar(&logFile, "log-file", "mediguide-tui.log", "File that receives logs while the TUI owns the terminal")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.NewFile(cfg.BasicConfig.LogMode, logFile)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	application, err := app.New(context.Background(), cfg, lg)
	if err != nil {
		log.Fatalf("init application: %v", err)
	}
	defer application.Close(context.Background())

	profile := models.UserProfile{Name: name, BloodType: models.BloodType(bloodType)}
	if birthdate != "" {
		profile.Birthdate, err = time.Parse(models.BirthdateLayout, birthdate)
		if err != nil {
			log.Fatalf("invalid --birthdate: %v", err)
		}
	}
	if err := application.Session.UpdateProfile(profile); err != nil {
		log.Fatalf("invalid profile: %v", err)
	}

	if _, err := tea.NewProgram(tui.New(application.Session), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
