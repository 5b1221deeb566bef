// Package main is the command-line client for the File Converter API.
//
// It mirrors what the web frontend does: keeps a device-local guest
// counter, holds an account session when you log in, asks the usage
// oracle before every conversion, and reports usage after. Run with no
// arguments for the command list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pagecraft-labs/file-converter-api/internal/convert"
	"github.com/pagecraft-labs/file-converter-api/internal/events"
	"github.com/pagecraft-labs/file-converter-api/internal/localstore"
	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
	"github.com/pagecraft-labs/file-converter-api/internal/quota"
	"github.com/pagecraft-labs/file-converter-api/internal/services/render"
	"github.com/pagecraft-labs/file-converter-api/internal/session"
)

const usage = `file-converter — PDF ⇄ images with usage metering

Usage:
  convert [flags] <files...>   run a conversion batch
  login                        sign in to an account
  register                     create a free account
  logout                       sign out and return to guest mode
  upgrade <pro|enterprise>     change plan
  status                       show who you are and what's left
  history                      list recent conversions

Convert flags:
  -mode      pdf-to-images | images-to-pdf (default pdf-to-images)
  -format    png | jpeg (default png)
  -quality   low | medium | high (default medium)
  -pages     page selection like "1-3,5" (default all)
  -out       output directory (default .)
  -name      output filename for images-to-pdf
`

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	app := newApp()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "login":
		err = app.login(ctx)
	case "register":
		err = app.register(ctx)
	case "logout":
		app.session.Logout(ctx)
	case "upgrade":
		err = app.upgrade(ctx, os.Args[2:])
	case "status":
		err = app.status(ctx)
	case "history":
		err = app.history(ctx)
	case "help", "-h", "--help":
		fmt.Print(usage)
	case "convert":
		err = app.convert(ctx, os.Args[2:])
	default:
		err = app.convert(ctx, os.Args[1:])
	}

	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// app wires the client-side stack: event bus, device-local guest store,
// server session, usage oracle.
type app struct {
	bus     *events.Bus
	local   *localstore.Store
	session *session.Client
	oracle  *quota.Oracle
}

func newApp() *app {
	baseURL := os.Getenv("FILE_CONVERTER_API")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	dir := localstore.DefaultDir()
	bus := events.NewBus()
	local := localstore.New(dir)
	sc := session.New(baseURL, dir, bus)
	oracle := quota.New(sc, local, bus)

	// Narrate auth and usage changes the way the web UI would react to
	// them.
	bus.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.Login:
			log.Println("🔓 Signed in")
		case events.Register:
			log.Println("🎉 Account created — you're on the free plan")
		case events.Logout:
			log.Println("🔒 Signed out — back to guest mode")
		case events.GuestUsageUpdated:
			if counter, ok := e.Payload.(quota.UpdatedCounter); ok {
				log.Printf("📊 Guest usage: %d/%d", counter.Used, counter.Limit)
			}
		case events.UsageUpdated:
			if counter, ok := e.Payload.(quota.UpdatedCounter); ok && !counter.Unlimited {
				log.Printf("📊 Usage: %d/%d", counter.Used, counter.Limit)
			}
		}
	})

	if !local.HasVisited() {
		log.Printf("👋 Welcome! Guests get %d free conversions (max %dMB per batch).",
			plan.GuestConversionLimit, plan.GuestMaxFileSize/(1024*1024))
		local.MarkVisited()
	}

	return &app{bus: bus, local: local, session: sc, oracle: oracle}
}

func (a *app) convert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	mode := fs.String("mode", "pdf-to-images", "conversion mode")
	format := fs.String("format", "png", "image format for pdf-to-images")
	quality := fs.String("quality", "medium", "render quality")
	pages := fs.String("pages", "", `page selection like "1-3,5"`)
	out := fs.String("out", ".", "output directory")
	name := fs.String("name", "", "output filename for images-to-pdf")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	req := convert.Request{
		Files:      fs.Args(),
		Format:     render.Format(*format),
		Quality:    render.Quality(*quality),
		PageRange:  *pages,
		OutputName: *name,
	}
	switch *mode {
	case "pdf-to-images":
		req.Mode = models.ConversionPDFToImages
	case "images-to-pdf":
		req.Mode = models.ConversionImagesToPDF
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}

	orch := convert.New(a.oracle, *out)
	result, err := orch.Run(ctx, req)

	var limitErr *convert.LimitError
	if errors.As(err, &limitErr) {
		return fmt.Errorf("%s", limitErr.Error())
	}
	if err != nil {
		return err
	}

	for _, path := range result.Outputs {
		log.Printf("📄 %s", path)
	}
	if result.Counter.Unlimited {
		log.Printf("✅ Done. Conversions used: %d (unlimited plan)", result.Counter.Used)
	} else {
		log.Printf("✅ Done. Conversions used: %d/%d (%d remaining)",
			result.Counter.Used, result.Counter.Limit, result.Counter.Remaining)
		if result.Counter.Remaining == 1 {
			log.Println("⚠️  One conversion left on your current plan.")
		}
	}
	return nil
}

func (a *app) login(ctx context.Context) error {
	email, password, err := promptCredentials(false)
	if err != nil {
		return err
	}
	user, err := a.session.Login(ctx, email, password)
	if err != nil {
		return err
	}
	printUser(user)
	return nil
}

func (a *app) register(ctx context.Context) error {
	fmt.Print("Name: ")
	var name string
	if _, err := fmt.Scanln(&name); err != nil {
		return err
	}
	email, password, err := promptCredentials(true)
	if err != nil {
		return err
	}
	user, err := a.session.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	printUser(user)
	return nil
}

func (a *app) upgrade(ctx context.Context, args []string) error {
	if len(args) != 1 || !plan.UpgradeableTo(plan.Tier(args[0])) {
		return errors.New("usage: upgrade <pro|enterprise>")
	}
	user, err := a.session.UpgradePlan(ctx, plan.Tier(args[0]))
	if err != nil {
		return err
	}
	log.Printf("⬆️  Upgraded to %s", user.PlanType)
	printUser(user)
	return nil
}

func (a *app) status(ctx context.Context) error {
	id := a.session.CurrentIdentity(ctx)
	if id.Guest {
		used := a.local.Count()
		remaining := plan.GuestConversionLimit - used
		if remaining < 0 {
			remaining = 0
		}
		log.Printf("👤 Guest (device %s)", a.local.DeviceID())
		log.Printf("   Conversions used: %d/%d (%d remaining)", used, plan.GuestConversionLimit, remaining)
		log.Printf("   Max file size: %dMB", plan.GuestMaxFileSize/(1024*1024))
		return nil
	}
	printUser(id.User)
	return nil
}

func (a *app) history(ctx context.Context) error {
	id := a.session.CurrentIdentity(ctx)
	if id.Guest {
		records := a.local.History()
		if len(records) == 0 {
			log.Println("No conversions yet.")
			return nil
		}
		for _, rec := range records {
			log.Printf("  %s  %-15s %s (%d pages)",
				rec.Timestamp.Format("2006-01-02 15:04"), rec.ConversionType, rec.Filename, rec.PagesConverted)
		}
		return nil
	}

	conversions, err := a.session.History(ctx, 50)
	if err != nil {
		return err
	}
	if len(conversions) == 0 {
		log.Println("No conversions yet.")
		return nil
	}
	for _, conv := range conversions {
		log.Printf("  %s  %-15s %s (%d pages)",
			conv.CreatedAt.Format("2006-01-02 15:04"), conv.ConversionType, conv.Filename, conv.PagesConverted)
	}
	return nil
}

func printUser(u *models.User) {
	log.Printf("👤 %s <%s> — %s plan", u.Name, u.Email, u.PlanType)
	if u.ConversionsLimit == plan.Unlimited {
		log.Printf("   Conversions used: %d (unlimited)", u.ConversionsUsed)
	} else {
		log.Printf("   Conversions used: %d/%d", u.ConversionsUsed, u.ConversionsLimit)
	}
	log.Printf("   Max file size: %dMB", u.MaxFileSize/(1024*1024))
}

func promptCredentials(confirm bool) (email, password string, err error) {
	fmt.Print("Email: ")
	if _, err = fmt.Scanln(&email); err != nil {
		return "", "", err
	}
	fmt.Print("Password: ")
	if _, err = fmt.Scanln(&password); err != nil {
		return "", "", err
	}
	if len(password) < 6 {
		return "", "", errors.New("password must be at least 6 characters")
	}
	if confirm {
		fmt.Print("Confirm password: ")
		var again string
		if _, err = fmt.Scanln(&again); err != nil {
			return "", "", err
		}
		if again != password {
			return "", "", errors.New("passwords do not match")
		}
	}
	return email, password, nil
}
