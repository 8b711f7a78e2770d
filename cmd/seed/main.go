package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

func main() {
	doctors := flag.Int("doctors", 50, "number of doctors to give a random schedule")
	templates := flag.Int("templates", 5, "number of random templates to create")
	regenerate := flag.Bool("regenerate", true, "materialize each doctor's booking window after seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Int("doctors", *doctors).Int("templates", *templates).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{AppName: "seed", MaxConns: int32(cfg.PostgresMaxConns)})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	svc := schedule.NewService(schedule.NewPgRepository(pool), nil, nil,
		schedule.SystemClock{Location: cfg.ClinicLocation}, logger, cfg)
	faker := gofakeit.New(0)

	if err := seedTemplates(ctx, svc, faker, *templates); err != nil {
		logger.Fatal().Err(err).Msg("seed templates")
	}
	if err := seedDoctors(ctx, svc, faker, *doctors, *regenerate, cfg.ClinicLocation, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}

	logger.Info().Msg("seed complete")
}

func seedTemplates(ctx context.Context, svc *schedule.Service, faker *gofakeit.Faker, count int) error {
	for i := 0; i < count; i++ {
		_, err := svc.CreateTemplate(ctx, schedule.Template{
			Name:        fmt.Sprintf("%s hours %s", faker.Company(), uuid.NewString()[:8]),
			Description: faker.JobTitle(),
			IsDefault:   i == 0,
			Content:     randomContent(faker),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func seedDoctors(ctx context.Context, svc *schedule.Service, faker *gofakeit.Faker, count int, regenerate bool, loc *time.Location, logger zerolog.Logger) error {
	for i := 0; i < count; i++ {
		doctorID := uuid.New()
		content := randomContent(faker)

		p, err := svc.ConfigureSchedule(ctx, doctorID, schedule.WorkPattern{
			Policy:   content.Policy,
			WorkDays: content.WorkDays,
		})
		if err != nil {
			return fmt.Errorf("configure doctor %s: %w", doctorID, err)
		}

		if faker.Bool() {
			holiday := civil.DateOf(time.Now().In(loc)).AddDays(faker.Number(1, p.Policy.MaxAdvanceBookingDays))
			_, err := svc.AddException(ctx, doctorID, schedule.Exception{
				Type:      schedule.ExceptionClosure,
				StartDate: holiday,
				Reason:    faker.HipsterWord(),
			})
			if err != nil {
				return fmt.Errorf("add exception for doctor %s: %w", doctorID, err)
			}
		}

		if !regenerate {
			continue
		}
		today := civil.DateOf(time.Now().In(loc))
		from, to := schedule.BookingWindow(p.Policy, today)
		created, _, err := svc.RegenerateSlots(ctx, doctorID, from, to)
		if err != nil {
			return fmt.Errorf("regenerate doctor %s: %w", doctorID, err)
		}
		logger.Info().Str("doctor_id", doctorID.String()).Int("created", created).Msg("doctor seeded")
	}
	return nil
}

// randomContent builds a valid policy and a Monday to Saturday week with a
// morning block and, on some days, an afternoon block.
func randomContent(faker *gofakeit.Faker) schedule.TemplateContent {
	durations := []int{10, 15, 20, 30, 45, 60}
	policy := schedule.Policy{
		SlotDurationMinutes:   durations[faker.Number(0, len(durations)-1)],
		MaxAppointmentsPerDay: faker.Number(8, 40),
		MinAdvanceBookingDays: faker.Number(0, 2),
		MaxAdvanceBookingDays: faker.Number(14, 60),
		AllowSameDayBooking:   faker.Bool(),
	}
	if faker.Bool() {
		policy.AllowWalkIn = true
		policy.MaxWalkInPerDay = faker.Number(1, 5)
	}

	var days []schedule.WorkDay
	for wd := time.Monday; wd <= time.Saturday; wd++ {
		morningStart := faker.Number(7, 9)
		day := schedule.WorkDay{
			DayOfWeek: wd,
			IsActive:  wd != time.Saturday || faker.Bool(),
			TimeRanges: []schedule.TimeRange{{
				StartTime: civil.Time{Hour: morningStart},
				EndTime:   civil.Time{Hour: 12},
				IsActive:  true,
			}},
		}
		if faker.Number(0, 3) > 0 {
			day.TimeRanges = append(day.TimeRanges, schedule.TimeRange{
				StartTime: civil.Time{Hour: 13, Minute: 30},
				EndTime:   civil.Time{Hour: faker.Number(16, 19)},
				IsActive:  true,
			})
		}
		days = append(days, day)
	}

	return schedule.TemplateContent{Policy: policy, WorkDays: days}
}
