package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
	"github.com/tenantry/message-service/internal/service"
)

// Seeds a demo property-management dataset through the real services, so the
// fan-out bookkeeping (counters, snapshots, notifications) is exercised the
// same way production traffic would.

type demoUser struct {
	id, name, email, role string
}

var demoUsers = []demoUser{
	{"u-landlord", "Morgan Reeves", "morgan@brookfield-mgmt.test", "landlord"},
	{"u-manager", "Priya Natarajan", "priya@brookfield-mgmt.test", "property_manager"},
	{"u-tenant-1", "Alice Johnson", "alice@tenants.test", "tenant"},
	{"u-tenant-2", "Bob Smith", "bob@tenants.test", "tenant"},
	{"u-tenant-3", "Charlie Brown", "charlie@tenants.test", "tenant"},
	{"u-maint", "Frank Miller", "frank@brookfield-mgmt.test", "maintenance"},
}

var sampleTexts = []string{
	"Hi! Just a reminder that rent is due on the 1st.",
	"The kitchen faucet is leaking again, can someone take a look?",
	"Scheduled the plumber for Thursday morning.",
	"Thanks for the quick turnaround!",
	"Package room code changes this Friday.",
	"The hallway light on floor 3 is out.",
	"Lease renewal documents are ready for signature.",
	"Water will be shut off Tuesday 9-11am for repairs.",
	"Can we reschedule the inspection?",
	"All set, see you then!",
}

func main() {
	dbPath := "demo_messages.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)
	logger.Init("warn")

	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := seedDemoData(db); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	fmt.Println("Seeded demo conversations and messages.")
	fmt.Printf("Database location: %s\n", dbPath)
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func seedDemoData(db *gorm.DB) error {
	ctx := context.Background()
	repos := repository.New(db)
	bus := domain.NewEventBus()

	conversations := service.NewConversationService(repos, bus)
	messages := service.NewMessageService(repos, bus)

	manager := demoUsers[1]
	tenants := demoUsers[2:5]

	// One direct conversation per tenant with the property manager.
	for _, tenant := range tenants {
		conv, err := conversations.Create(ctx,
			"", domain.ConversationTypeDirect,
			[]service.NewParticipant{
				{UserID: manager.id, Name: manager.name, Email: manager.email, Role: manager.role},
				{UserID: tenant.id, Name: tenant.name, Email: tenant.email, Role: tenant.role},
			},
			manager.id,
			service.ConversationOptions{
				PropertyID:   "prop-brookfield",
				PropertyName: "Brookfield Apartments",
			},
		)
		if err != nil {
			return err
		}

		if err := seedThread(ctx, messages, conv.ID, []demoUser{manager, tenant}); err != nil {
			return err
		}
	}

	// A property-wide announcement group with everyone in it.
	participants := make([]service.NewParticipant, len(demoUsers))
	for i, u := range demoUsers {
		participants[i] = service.NewParticipant{UserID: u.id, Name: u.name, Email: u.email, Role: u.role}
	}
	group, err := conversations.Create(ctx,
		"Brookfield Announcements", domain.ConversationTypeProperty,
		participants, manager.id,
		service.ConversationOptions{
			PropertyID:   "prop-brookfield",
			PropertyName: "Brookfield Apartments",
		},
	)
	if err != nil {
		return err
	}

	_, err = messages.Send(ctx, group.ID, manager.id, manager.name, manager.role,
		"Welcome to the Brookfield announcements channel!",
		domain.SendOptions{Type: domain.MessageTypeNotification, Priority: domain.PriorityLow},
	)
	if err != nil {
		return err
	}

	// A maintenance thread between a tenant and the maintenance tech.
	maint := demoUsers[5]
	tenant := tenants[0]
	maintenance, err := conversations.Create(ctx,
		"Unit 3B - Leaking faucet", domain.ConversationTypeMaintenance,
		[]service.NewParticipant{
			{UserID: tenant.id, Name: tenant.name, Email: tenant.email, Role: tenant.role},
			{UserID: maint.id, Name: maint.name, Email: maint.email, Role: maint.role},
			{UserID: manager.id, Name: manager.name, Email: manager.email, Role: manager.role},
		},
		tenant.id,
		service.ConversationOptions{
			PropertyID:           "prop-brookfield",
			PropertyName:         "Brookfield Apartments",
			UnitID:               "unit-3b",
			UnitNumber:           "3B",
			MaintenanceRequestID: "mr-1042",
		},
	)
	if err != nil {
		return err
	}

	_, err = messages.Send(ctx, maintenance.ID, tenant.id, tenant.name, tenant.role,
		"The kitchen faucet is leaking again, can someone take a look?",
		domain.SendOptions{Type: domain.MessageTypeAlert, Priority: domain.PriorityHigh},
	)
	return err
}

func seedThread(ctx context.Context, messages *service.MessageService, conversationID string, users []demoUser) error {
	count := 3 + rand.Intn(5)
	for i := 0; i < count; i++ {
		sender := users[rand.Intn(len(users))]
		text := sampleTexts[rand.Intn(len(sampleTexts))]
		if _, err := messages.Send(ctx, conversationID, sender.id, sender.name, sender.role, text, domain.SendOptions{}); err != nil {
			return err
		}
	}
	return nil
}
