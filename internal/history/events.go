package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
)

// Build event actions.
const (
	ActionStart    = "start"
	ActionRecord   = "record"
	ActionStop     = "stop"
	ActionComplete = "complete"
	ActionFail     = "fail"
)

// Event is one message of the build event log. Every history entry and every
// lifecycle change of a run is appended as an event.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Run       string          `json:"run"`
	Type      string          `json:"type"`   // build, iteration
	Action    string          `json:"action"` // start, record, stop, complete, fail
	Meta      json.RawMessage `json:"meta,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// StartMeta is the metadata of a build start event.
type StartMeta struct {
	ProjectSpec   string `json:"project_spec"`
	MaxIterations int    `json:"max_iterations"`
	ProjectDir    string `json:"project_dir"`
}

// NewEvent builds an event with a fresh ID, encoding meta as JSON.
func NewEvent(run, typ, action, data string, meta any) (Event, error) {
	ev := Event{ID: uuid.NewString(), Run: run, Type: typ, Action: action, Data: data}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event meta: %w", err)
		}
		ev.Meta = raw
	}
	return ev, nil
}

// Store appends build events to JetStream and reduces them back into state.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStore creates a Store on the given JetStream context and stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// Publish appends an event to the log under forgeloop.{run}.{type}.
func (s *Store) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForEvent(event.Run, event.Type)
	var opts []jetstream.PublishOpt
	if event.ID != "" {
		// Retried publishes of the same event are deduplicated by the stream.
		opts = append(opts, jetstream.WithMsgID(event.ID))
	}
	ack, err := s.js.Publish(ctx, subject, data, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}
	logger.Debug("Event published: run=%s type=%s action=%s seq=%d", event.Run, event.Type, event.Action, ack.Sequence)
	return nil
}

// State is a run reconstructed from its events.
type State struct {
	Run           string    `json:"run"`
	Goal          string    `json:"goal"`
	ProjectSpec   string    `json:"project_spec"`
	ProjectDir    string    `json:"project_dir"`
	MaxIterations int       `json:"max_iterations"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	Entries       []Entry   `json:"entries"`
	Stopped       bool      `json:"stopped"`
	Complete      bool      `json:"complete"`
	Error         string    `json:"error,omitempty"`
}

// Apply reduces one event into the state.
func (st *State) Apply(event Event) {
	switch event.Type {
	case nats.EventTypeBuild:
		st.applyBuildEvent(event)
	case nats.EventTypeIteration:
		if event.Action != ActionRecord {
			return
		}
		var entry Entry
		if err := json.Unmarshal(event.Meta, &entry); err != nil {
			logger.Warn("Skipping malformed iteration event %s: %v", event.ID, err)
			return
		}
		st.Entries = append(st.Entries, entry)
	}
}

func (st *State) applyBuildEvent(event Event) {
	switch event.Action {
	case ActionStart:
		var meta StartMeta
		_ = json.Unmarshal(event.Meta, &meta)
		st.Goal = event.Data
		st.ProjectSpec = meta.ProjectSpec
		st.ProjectDir = meta.ProjectDir
		st.MaxIterations = meta.MaxIterations
		st.StartedAt = event.Timestamp
	case ActionStop:
		st.Stopped = true
	case ActionComplete:
		st.Complete = true
		st.EndedAt = event.Timestamp
	case ActionFail:
		st.Error = event.Data
		st.EndedAt = event.Timestamp
	}
}

// LoadState replays every event of run.
func (s *Store) LoadState(ctx context.Context, run string) (*State, error) {
	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.SubjectForRun(run),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := &State{Run: run}

	const batchSize = 1000
	total, malformed := 0, 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}
		count := 0
		for msg := range msgs.Messages() {
			count++
			total++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				malformed++
				_ = msg.Ack()
				continue
			}
			if event.ID == "" {
				if meta, err := msg.Metadata(); err == nil {
					event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}
			state.Apply(event)
			_ = msg.Ack()
		}
		if count < batchSize {
			break
		}
	}

	if malformed > 0 {
		logger.Warn("Skipped %d malformed events while loading run %s", malformed, run)
	}
	logger.Debug("Run %s loaded: %d events, %d entries", run, total, len(state.Entries))
	return state, nil
}

// Runs lists the run identifiers present in the log, sorted.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	info, err := s.stream.Info(ctx, jetstream.WithSubjectFilter(nats.SubjectForRun("*")))
	if err != nil {
		return nil, fmt.Errorf("failed to read stream info: %w", err)
	}

	seen := make(map[string]bool)
	var runs []string
	for subject := range info.State.Subjects {
		run, ok := nats.RunFromSubject(subject)
		if ok && !seen[run] {
			seen[run] = true
			runs = append(runs, run)
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// Document converts the replayed run into its history document form.
func (st *State) Document() *Document {
	doc := &Document{
		ProjectSpec: st.ProjectSpec,
		Goal:        st.Goal,
		History:     append([]Entry(nil), st.Entries...),
		CompletedAt: st.EndedAt,
	}
	for _, e := range st.Entries {
		if e.Action != ActionFinalReview && e.Iteration > doc.TotalIterations {
			doc.TotalIterations = e.Iteration
		}
	}
	return doc
}
