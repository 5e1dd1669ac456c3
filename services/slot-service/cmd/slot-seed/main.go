package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/libs/grpcx"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/grpcserver"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
)

var zones = []string{"Europe/Brussels", "Europe/London", "America/New_York", "Asia/Kolkata", "UTC"}

type seedPlan struct {
	staff    int
	meetings int
	seed     uint64
	now      time.Time
}

type seeded struct {
	staffIDs    []string
	employeeIDs []string
	calendarID  string
	typeIDs     []string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fatal(err.Error())
	}
	var (
		dbURL    = flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres url")
		staff    = flag.Int("staff", 6, "number of staff users")
		meetings = flag.Int("meetings", 40, "number of meetings over the next two weeks")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "faker seed")
		grpcAddr = flag.String("grpc-addr", os.Getenv("SLOT_GRPC_ADDR"), "optional slot-service gRPC address to query after seeding")
	)
	flag.Parse()
	if *dbURL == "" {
		fatal("DATABASE_URL is required")
	}
	if *staff < 2 {
		fatal("at least two staff users are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, *dbURL, db.Options{MaxConns: 2})
	if err != nil {
		fatal(err.Error())
	}
	defer pool.Close()
	if err := storage.ApplySchema(ctx, pool); err != nil {
		fatal(err.Error())
	}

	plan := seedPlan{staff: *staff, meetings: *meetings, seed: *seed, now: time.Now().UTC()}
	out, err := seedDirectory(ctx, pool, plan)
	if err != nil {
		fatal(fmt.Sprintf("seed directory: %v", err))
	}

	admin := storage.NewAdminRepository(pool, storage.NewOutboxRepository())
	for _, at := range appointmentTypes(gofakeit.New(plan.seed), out) {
		if err := admin.UpsertType(ctx, at); err != nil {
			fatal(fmt.Sprintf("upsert %s: %v", at.ID, err))
		}
		out.typeIDs = append(out.typeIDs, at.ID)
	}

	fmt.Printf("staff=%d employees=%d calendar=%s\n", len(out.staffIDs), len(out.employeeIDs), out.calendarID)
	for _, id := range out.typeIDs {
		fmt.Printf("appointment_type=%s\n", id)
	}

	if *grpcAddr != "" {
		if err := querySlots(ctx, *grpcAddr, out.typeIDs); err != nil {
			fatal(fmt.Sprintf("query slots: %v", err))
		}
	}
}

// seedDirectory inserts staff, one working calendar shared by half of the staff, a leave,
// and meetings spread over the next fourteen days.
func seedDirectory(ctx context.Context, pool *db.Pool, plan seedPlan) (seeded, error) {
	f := gofakeit.New(plan.seed)
	out := seeded{calendarID: "cal-" + uuid.NewString()}

	err := pool.InTx(ctx, func(tx pgx.Tx) error {
		for i := 0; i < plan.staff; i++ {
			id := uuid.NewString()
			if _, err := tx.Exec(ctx, `INSERT INTO staff_users (id, name, timezone) VALUES ($1, $2, $3)`,
				id, f.Name(), zones[f.Number(0, len(zones)-1)]); err != nil {
				return err
			}
			out.staffIDs = append(out.staffIDs, id)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO resource_calendars (id, name, timezone) VALUES ($1, $2, 'Europe/Brussels')`,
			out.calendarID, "Standard 38 hours "+f.Company()); err != nil {
			return err
		}
		for wd := 0; wd < 5; wd++ {
			for _, span := range [][2]float64{{8, 12}, {13, 16.5}} {
				if _, err := tx.Exec(ctx, `
					INSERT INTO calendar_attendance (calendar_id, weekday, hour_from, hour_to) VALUES ($1, $2, $3, $4)
				`, out.calendarID, wd, span[0], span[1]); err != nil {
					return err
				}
			}
		}

		for _, staffID := range out.staffIDs[:plan.staff/2] {
			id := "emp-" + uuid.NewString()
			if _, err := tx.Exec(ctx, `INSERT INTO employees (id, staff_user_id, calendar_id) VALUES ($1, $2, $3)`,
				id, staffID, out.calendarID); err != nil {
				return err
			}
			out.employeeIDs = append(out.employeeIDs, id)
		}

		leaveDay := plan.now.Truncate(24*time.Hour).AddDate(0, 0, f.Number(2, 10))
		if _, err := tx.Exec(ctx, `INSERT INTO employee_leaves (employee_id, start_at, end_at) VALUES ($1, $2, $3)`,
			out.employeeIDs[0], leaveDay, leaveDay.Add(24*time.Hour)); err != nil {
			return err
		}

		for i := 0; i < plan.meetings; i++ {
			id := "mtg-" + uuid.NewString()
			start := plan.now.Truncate(time.Hour).Add(time.Duration(f.Number(1, 14*24)) * time.Hour)
			allDay := f.Number(1, 20) == 1
			end := start.Add(time.Duration(f.Number(1, 3)) * 30 * time.Minute)
			if allDay {
				start = start.Truncate(24 * time.Hour)
				end = start.Add(24 * time.Hour)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO meetings (id, name, start_at, end_at, all_day) VALUES ($1, $2, $3, $4, $5)`,
				id, f.BuzzWord()+" sync", start, end, allDay); err != nil {
				return err
			}
			attendee := out.staffIDs[f.Number(0, len(out.staffIDs)-1)]
			if _, err := tx.Exec(ctx, `INSERT INTO meeting_attendees (meeting_id, staff_user_id) VALUES ($1, $2)`, id, attendee); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// appointmentTypes returns one type per category: a random website type over every staff
// user, a chosen custom type, and a work_hours type over the calendar employees.
func appointmentTypes(f *gofakeit.Faker, s seeded) []slots.AppointmentType {
	all := make([]slots.StaffUser, 0, len(s.staffIDs))
	for _, id := range s.staffIDs {
		all = append(all, slots.StaffUser{ID: id})
	}
	withCalendar := all[:len(s.employeeIDs)]

	weekdays := func(from, to float64) []slots.SlotTemplate {
		var out []slots.SlotTemplate
		for wd := 0; wd < 5; wd++ {
			out = append(out, slots.SlotTemplate{Weekday: wd, StartHour: from, EndHour: to})
		}
		return out
	}

	return []slots.AppointmentType{
		{
			ID:               "website-" + uuid.NewString(),
			Name:             f.JobTitle() + " consultation",
			Timezone:         "Europe/Brussels",
			DurationHours:    1,
			MinScheduleHours: 2,
			MaxScheduleDays:  15,
			AssignPolicy:     slots.AssignRandom,
			Category:         slots.CategoryWebsite,
			StaffUsers:       all,
			Templates:        weekdays(9, 17),
		},
		{
			ID:                   "custom-" + uuid.NewString(),
			Name:                 f.BuzzWord() + " review",
			Timezone:             "America/New_York",
			DurationHours:        0.5,
			MaxScheduleDays:      10,
			MinCancellationHours: 24,
			AssignPolicy:         slots.AssignChosen,
			Category:             slots.CategoryCustom,
			StaffUsers:           all[len(all)-1:],
			Templates:            append(weekdays(10, 12), slots.SlotTemplate{Weekday: 5, StartHour: 9, EndHour: 11}),
		},
		{
			ID:              "work-hours-" + uuid.NewString(),
			Name:            "Drop-in",
			Timezone:        "Europe/Brussels",
			DurationHours:   0.75,
			MaxScheduleDays: 15,
			AssignPolicy:    slots.AssignRandom,
			Category:        slots.CategoryWorkHours,
			StaffUsers:      withCalendar,
		},
	}
}

func querySlots(ctx context.Context, addr string, typeIDs []string) error {
	client, err := grpcserver.NewClient(addr, grpcx.DialOptions{})
	if err != nil {
		return err
	}
	defer client.Close()

	for _, id := range typeIDs {
		res, err := client.GetSlots(ctx, slots.Query{AppointmentTypeID: id, ViewerTimezone: "Europe/Brussels"})
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Printf("appointment_type=%s slots=%d\n", id, grpcserver.CountSlots(res))
	}
	return nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
