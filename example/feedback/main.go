package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/formviewer"
	"github.com/tbxark/formviewer/chat"
	"github.com/tbxark/formviewer/submit"
	"github.com/tbxark/formviewer/types"
)

var feedbackFields = []types.FieldDescriptor{
	{Name: "name", Order: 0},
	{Name: "email", Order: 1},
	{Name: "rating", Order: 2},
	{Name: "comments", Order: 3},
}

// consoleNotifier prints the submission events a web host would toast, and
// remembers whether a retry is pending.
type consoleNotifier struct {
	retryPending bool
}

func (n *consoleNotifier) SubmissionStarted() {
	fmt.Println("Saving form details...")
}

func (n *consoleNotifier) SubmissionSucceeded() {
	n.retryPending = false
	fmt.Println("Form details saved successfully.")
}

func (n *consoleNotifier) SubmissionFailed(err error) {
	n.retryPending = true
	fmt.Printf("Unable to save form details: %v\n", err)
}

// transcriptStore is a stand-in persistence collaborator for running the
// example without a backend: it prints the submitted conversation.
type transcriptStore struct{}

func (transcriptStore) SaveConversation(ctx context.Context, formID string, req *submit.Request) error {
	fmt.Printf("Submitted conversation for form %s:\n%s", formID, types.FormatTranscript(req.Messages))
	return nil
}

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := startApp(context.Background(), config); err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func startApp(ctx context.Context, config *Config) error {
	slog.SetLogLoggerLevel(slog.LevelInfo)
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return err
	}

	formID := config.FormID
	if formID == "" {
		formID = "feedback"
	}
	var persistence submit.Store = transcriptStore{}
	if config.SubmitURL != "" {
		persistence = submit.NewHTTPStore(config.SubmitURL)
	}

	notifier := &consoleNotifier{}
	viewer, err := formviewer.NewViewer(
		formID,
		feedbackFields,
		chat.NewModelTransport(cm, feedbackFields),
		persistence,
		formviewer.WithNotifier(notifier),
		formviewer.WithTurnDeltaHook(func(delta string) {
			fmt.Print(delta)
		}),
	)
	if err != nil {
		return err
	}

	fmt.Println("Welcome! Press enter to start filling the feedback form.")
	reader := bufio.NewReader(os.Stdin)
	if _, err := reader.ReadString('\n'); err != nil {
		return err
	}
	fmt.Print("Agent: ")
	if err := viewer.Begin(ctx); err != nil {
		return err
	}
	fmt.Println()

	for viewer.State().Stage == types.StageFields {
		fmt.Print("You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("input closed, exiting")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		fmt.Print("Agent: ")
		if _, sErr := viewer.Send(ctx, input); sErr != nil {
			fmt.Printf("\nchat failed: %v\n", sErr)
			continue
		}
		fmt.Println()
	}

	// Manual retry affordance, the console stand-in for a toast button.
	for notifier.retryPending {
		fmt.Print("Retry submission? (y/n): ")
		answer, rErr := reader.ReadString('\n')
		if rErr != nil || strings.TrimSpace(strings.ToLower(answer)) != "y" {
			break
		}
		if rErr := viewer.Retry(ctx); rErr != nil {
			fmt.Printf("retry failed: %v\n", rErr)
		}
	}
	fmt.Println("All done, thanks for your feedback!")
	return nil
}
