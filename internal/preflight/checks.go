package preflight

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"sputnik/internal/config"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before the bot starts
type Checker struct {
	cfg *config.Config
}

// NewChecker creates a new preflight checker
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{cfg: cfg}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkTelegramToken(),
		c.checkCompletionAPI(),
		c.checkStatePath(),
		c.checkRetentionConfig(),
	}

	passed, failed, warnings := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("\n📊 Pre-flight summary: %d passed, %d failed, %d warnings\n", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkTelegramToken() CheckResult {
	if c.cfg.TelegramBotToken == "" {
		return CheckResult{
			Name:    "Telegram Token",
			Status:  "fail",
			Message: "TELEGRAM_TOKEN is not set",
		}
	}
	return CheckResult{
		Name:    "Telegram Token",
		Status:  "pass",
		Message: "Bot token configured",
	}
}

func (c *Checker) checkCompletionAPI() CheckResult {
	if c.cfg.OpenAIAPIKey == "" {
		return CheckResult{
			Name:    "Completion API",
			Status:  "warning",
			Message: "OPENAI_API_KEY is not set (conversation replies will fail)",
		}
	}
	return CheckResult{
		Name:    "Completion API",
		Status:  "pass",
		Message: fmt.Sprintf("Using model %s at %s", c.cfg.OpenAIModel, c.cfg.OpenAIBaseURL),
	}
}

// checkStatePath verifies the state file's directory exists and is writable,
// so the first flush cannot fail at an inconvenient moment.
func (c *Checker) checkStatePath() CheckResult {
	dir := filepath.Dir(c.cfg.MemoryFile)

	info, err := os.Stat(dir)
	if err != nil {
		return CheckResult{
			Name:    "State Path",
			Status:  "fail",
			Message: fmt.Sprintf("State directory %s is not accessible", dir),
			Error:   err,
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Name:    "State Path",
			Status:  "fail",
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return CheckResult{
			Name:    "State Path",
			Status:  "fail",
			Message: fmt.Sprintf("State directory %s is not writable", dir),
			Error:   err,
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{
		Name:    "State Path",
		Status:  "pass",
		Message: fmt.Sprintf("State stored at %s (%s backend)", c.cfg.MemoryFile, c.cfg.StoreBackend),
	}
}

func (c *Checker) checkRetentionConfig() CheckResult {
	if c.cfg.ReminderRetentionDays <= 0 {
		return CheckResult{
			Name:    "Reminder Retention",
			Status:  "pass",
			Message: "Disabled (fired reminders kept forever)",
		}
	}

	if _, err := cron.ParseStandard(c.cfg.RetentionCron); err != nil {
		return CheckResult{
			Name:    "Reminder Retention",
			Status:  "fail",
			Message: fmt.Sprintf("Invalid RETENTION_CRON %q", c.cfg.RetentionCron),
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Reminder Retention",
		Status:  "pass",
		Message: fmt.Sprintf("Pruning reminders older than %d days (%s)", c.cfg.ReminderRetentionDays, c.cfg.RetentionCron),
	}
}
