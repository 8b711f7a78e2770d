package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

// simulate races many booking attempts against the same available slots and
// checks that every slot ended up with exactly one appointment.
//
// SIM_MODE=http drives a running api-server; SIM_MODE=local runs the service
// in process over an in-memory repository and needs no infrastructure.

type SimConfig struct {
	Mode            string
	APIBaseURL      string
	Workers         int
	AttemptsPerSlot int
	SlotLimit       int
	PostgresDSN     string
}

// booker attempts to book slotID for appointmentID. It reports whether the
// booking won and whether it lost the race cleanly.
type booker interface {
	Book(ctx context.Context, slotID, appointmentID uuid.UUID) (won, conflict bool, err error)
	Slot(ctx context.Context, slotID uuid.UUID) (status string, appointmentID *uuid.UUID, err error)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := append([]time.Duration(nil), om.Latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type attempt struct {
	slotID        uuid.UUID
	appointmentID uuid.UUID
}

type Simulator struct {
	config  SimConfig
	booker  booker
	slots   []uuid.UUID
	metrics OperationMetrics
	logger  zerolog.Logger

	mu      sync.Mutex
	winners map[uuid.UUID][]uuid.UUID // slot -> appointment ids that got a success
}

func main() {
	baseCfg, err := config.Load()
	if err != nil && os.Getenv("SIM_MODE") != "local" {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg := SimConfig{
		Mode:            getEnv("SIM_MODE", "http"),
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:         getInt("SIM_WORKERS", 16),
		AttemptsPerSlot: getInt("SIM_ATTEMPTS_PER_SLOT", 8),
		SlotLimit:       getInt("SIM_SLOT_LIMIT", 200),
		PostgresDSN:     baseCfg.PostgresDSN,
	}
	if cfg.Workers <= 0 || cfg.AttemptsPerSlot <= 1 || cfg.SlotLimit <= 0 {
		logger.Fatal().Msg("SIM_WORKERS and SIM_SLOT_LIMIT must be > 0, SIM_ATTEMPTS_PER_SLOT must be > 1")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sim := &Simulator{config: cfg, logger: logger, winners: make(map[uuid.UUID][]uuid.UUID)}

	switch cfg.Mode {
	case "local":
		b, slots, err := newLocalBooker(ctx, cfg.SlotLimit, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("prepare local service")
		}
		sim.booker, sim.slots = b, slots
	case "http":
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{AppName: "simulate"})
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		slots, err := loadAvailableSlots(ctx, pool, cfg.SlotLimit)
		if err != nil {
			logger.Fatal().Err(err).Msg("load slots")
		}
		sim.booker = &httpBooker{baseURL: cfg.APIBaseURL, client: &http.Client{Timeout: 10 * time.Second}}
		sim.slots = slots
	default:
		logger.Fatal().Str("mode", cfg.Mode).Msg("SIM_MODE must be http or local")
	}

	logger.Info().Str("mode", cfg.Mode).Int("slots", len(sim.slots)).Int("workers", cfg.Workers).
		Int("attempts_per_slot", cfg.AttemptsPerSlot).Msg("simulation starting")

	sim.Run(ctx)
	violations := sim.Verify(ctx)
	sim.PrintReport(violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func loadAvailableSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM slots
		WHERE status = 'available' AND deleted_at IS NULL AND date >= current_date
		ORDER BY date, start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("no available slots, run cmd/seed first")
	}
	return ids, nil
}

// Run fans every attempt out over the worker pool. Attempts for one slot are
// interleaved with attempts for the others so they genuinely overlap.
func (s *Simulator) Run(ctx context.Context) {
	attempts := make(chan attempt)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range attempts {
				s.doBooking(ctx, a)
			}
		}()
	}

	for round := 0; round < s.config.AttemptsPerSlot; round++ {
		for _, slotID := range s.slots {
			select {
			case attempts <- attempt{slotID: slotID, appointmentID: uuid.New()}:
			case <-ctx.Done():
			}
		}
	}
	close(attempts)
	wg.Wait()
}

func (s *Simulator) doBooking(ctx context.Context, a attempt) {
	start := time.Now()
	won, conflict, err := s.booker.Book(ctx, a.slotID, a.appointmentID)
	s.metrics.Record(time.Since(start), won, conflict)

	if err != nil {
		s.logger.Debug().Err(err).Str("slot_id", a.slotID.String()).Msg("booking error")
	}
	if won {
		s.mu.Lock()
		s.winners[a.slotID] = append(s.winners[a.slotID], a.appointmentID)
		s.mu.Unlock()
	}
}

// Verify checks each slot was won at most once and that the stored
// appointment id is the winner's. It returns the number of violations.
func (s *Simulator) Verify(ctx context.Context) int {
	violations := 0
	for _, slotID := range s.slots {
		winners := s.winners[slotID]
		if len(winners) > 1 {
			violations++
			s.logger.Error().Str("slot_id", slotID.String()).Int("winners", len(winners)).Msg("double booking")
			continue
		}
		if len(winners) == 0 {
			continue
		}

		status, appointmentID, err := s.booker.Slot(ctx, slotID)
		if err != nil {
			s.logger.Warn().Err(err).Str("slot_id", slotID.String()).Msg("verify read failed")
			continue
		}
		if status != string(schedule.SlotBooked) || appointmentID == nil || *appointmentID != winners[0] {
			violations++
			s.logger.Error().Str("slot_id", slotID.String()).Str("status", status).Msg("slot does not hold the winning appointment")
		}
	}
	return violations
}

func (s *Simulator) PrintReport(violations int) {
	total := atomic.LoadInt64(&s.metrics.Total)
	success := atomic.LoadInt64(&s.metrics.Success)
	conflict := atomic.LoadInt64(&s.metrics.Conflict)
	failed := atomic.LoadInt64(&s.metrics.Error)
	avg, p50, p95, max := s.metrics.Stats()

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Mode: %s\n", s.config.Mode)
	fmt.Printf("Slots: %d  Attempts per slot: %d  Workers: %d\n", len(s.slots), s.config.AttemptsPerSlot, s.config.Workers)
	fmt.Printf("Attempts: %d\n", total)
	if total > 0 {
		fmt.Printf("  Booked: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Microsecond), p50.Round(time.Microsecond), p95.Round(time.Microsecond), max.Round(time.Microsecond))
	fmt.Printf("Double bookings / mismatches: %d\n", violations)
}

type httpBooker struct {
	baseURL string
	client  *http.Client
}

func (b *httpBooker) Book(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, bool, error) {
	body, _ := json.Marshal(map[string]string{"appointment_id": appointmentID.String()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/slots/%s/book", b.baseURL, slotID), bytes.NewReader(body))
	if err != nil {
		return false, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return false, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, false, nil
	case http.StatusConflict:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (b *httpBooker) Slot(ctx context.Context, slotID uuid.UUID) (string, *uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/slots/%s", b.baseURL, slotID), nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var slot struct {
		Status        string     `json:"status"`
		AppointmentID *uuid.UUID `json:"appointment_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return "", nil, err
	}
	return slot.Status, slot.AppointmentID, nil
}

type localBooker struct {
	svc *schedule.Service
}

// newLocalBooker configures one doctor on an in-memory repository and
// materializes enough days to offer at least limit slots.
func newLocalBooker(ctx context.Context, limit int, logger zerolog.Logger) (*localBooker, []uuid.UUID, error) {
	repo := schedule.NewMemoryRepository()
	svc := schedule.NewService(repo, nil, nil, schedule.SystemClock{Location: time.UTC}, logger.Level(zerolog.WarnLevel), config.Config{RegenConcurrency: 1})

	doctorID := uuid.New()
	var days []schedule.WorkDay
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		days = append(days, schedule.WorkDay{
			DayOfWeek: wd,
			IsActive:  true,
			TimeRanges: []schedule.TimeRange{{
				StartTime: civil.Time{Hour: 8},
				EndTime:   civil.Time{Hour: 18},
				IsActive:  true,
			}},
		})
	}
	policy := schedule.DefaultPolicy()
	policy.SlotDurationMinutes = 15
	policy.MaxAppointmentsPerDay = 40
	policy.MaxAdvanceBookingDays = 365

	if _, err := svc.ConfigureSchedule(ctx, doctorID, schedule.WorkPattern{Policy: policy, WorkDays: days}); err != nil {
		return nil, nil, err
	}

	today := civil.DateOf(time.Now().UTC())
	span := (limit + policy.MaxAppointmentsPerDay - 1) / policy.MaxAppointmentsPerDay
	if span > policy.MaxAdvanceBookingDays {
		span = policy.MaxAdvanceBookingDays
	}
	if _, _, err := svc.RegenerateSlots(ctx, doctorID, today.AddDays(1), today.AddDays(span)); err != nil {
		return nil, nil, err
	}

	slots, err := svc.ListByRange(ctx, doctorID, today, today.AddDays(span), []schedule.SlotStatus{schedule.SlotAvailable})
	if err != nil {
		return nil, nil, err
	}
	var ids []uuid.UUID
	for _, s := range slots {
		if len(ids) == limit {
			break
		}
		ids = append(ids, s.ID)
	}
	return &localBooker{svc: svc}, ids, nil
}

func (b *localBooker) Book(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, bool, error) {
	_, err := b.svc.Book(ctx, slotID, appointmentID)
	var notAvailable *schedule.SlotNotAvailableError
	switch {
	case err == nil:
		return true, false, nil
	case errors.As(err, &notAvailable):
		return false, true, nil
	default:
		return false, false, err
	}
}

func (b *localBooker) Slot(ctx context.Context, slotID uuid.UUID) (string, *uuid.UUID, error) {
	slot, err := b.svc.GetSlot(ctx, slotID)
	if err != nil {
		return "", nil, err
	}
	return string(slot.Status), slot.AppointmentID, nil
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
