package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hrms/pkg/events"
	"hrms/pkg/platform/dispatch/mocks"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	email     *mocks.MockEmailSender
	audit     *mocks.MockAuditLogger
	logger    *slog.Logger
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.email = mocks.NewMockEmailSender(s.ctrl)
	s.audit = mocks.NewMockAuditLogger(s.ctrl)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *DispatcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DispatcherSuite) dispatcher(opts ...Option) *Dispatcher {
	opts = append([]Option{
		WithLogger(s.logger),
		WithEmailFallback(s.email),
		WithAuditFallback(s.audit),
	}, opts...)
	d, err := New(s.publisher, opts...)
	s.Require().NoError(err)
	return d
}

func (s *DispatcherSuite) notificationEvent() events.Envelope {
	env, err := events.New("user-management-service", events.NotificationRequested,
		events.NotificationPayload{
			RecipientEmail: "jane@company.com",
			Subject:        "Welcome to HRMS!",
			TemplateName:   "account_created",
			TemplateData:   map[string]any{"first_name": "Jane"},
		})
	s.Require().NoError(err)
	return env
}

func (s *DispatcherSuite) auditEvent() events.Envelope {
	env, err := events.New("user-management-service", events.AuditUserAction,
		events.AuditPayload{UserID: 7, Action: "DELETE", ResourceType: "user", ResourceID: 42})
	s.Require().NoError(err)
	return env
}

func (s *DispatcherSuite) leaveEvent() events.Envelope {
	env, err := events.New("leave-service", events.LeaveApproved,
		events.LeavePayload{LeaveID: 3, EmployeeID: 11, LeaveType: "annual", Status: "approved"})
	s.Require().NoError(err)
	return env
}

func (s *DispatcherSuite) TestNew() {
	s.Run("nil publisher returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "publisher is required")
	})

	s.Run("valid publisher returns dispatcher", func() {
		d, err := New(s.publisher)
		s.NoError(err)
		s.NotNil(d)
	})
}

func (s *DispatcherSuite) TestDeliver() {
	s.Run("async success skips the collaborator", func() {
		d := s.dispatcher()
		env := s.notificationEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), events.TopicNotification, env.Key(), env).
			Return(true)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("async failure falls back to the email collaborator exactly once", func() {
		d := s.dispatcher()
		env := s.notificationEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), events.TopicNotification, env.Key(), env).
			Return(false)
		s.email.EXPECT().
			SendEmail(gomock.Any(), env.Payload.(events.NotificationPayload)).
			Return(nil).
			Times(1)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("async disabled goes straight to the collaborator", func() {
		d := s.dispatcher(WithAsyncEnabled(false))
		env := s.notificationEvent()

		// Publisher must never be touched when the async path is off.
		s.email.EXPECT().
			SendEmail(gomock.Any(), env.Payload.(events.NotificationPayload)).
			Return(nil).
			Times(1)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("unstarted publisher short-circuits to the collaborator", func() {
		d := s.dispatcher()
		env := s.notificationEvent()

		// Send must never be attempted against a client that is not running.
		s.publisher.EXPECT().Started().Return(false)
		s.email.EXPECT().
			SendEmail(gomock.Any(), env.Payload.(events.NotificationPayload)).
			Return(nil).
			Times(1)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("event type with no topic goes straight to the collaborator", func() {
		d := s.dispatcher()
		env := s.notificationEvent()
		env.EventType = "notification.retired_kind"

		s.email.EXPECT().
			SendEmail(gomock.Any(), env.Payload.(events.NotificationPayload)).
			Return(nil).
			Times(1)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("audit events fall back to the audit collaborator", func() {
		d := s.dispatcher()
		env := s.auditEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), events.TopicAudit, env.Key(), env).
			Return(false)
		s.audit.EXPECT().
			LogAction(gomock.Any(), env.Payload.(events.AuditPayload)).
			Return(nil)

		s.NoError(d.Deliver(context.Background(), env))
	})

	s.Run("both paths failing names the undone side effect", func() {
		d := s.dispatcher()
		env := s.notificationEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false)
		s.email.EXPECT().
			SendEmail(gomock.Any(), gomock.Any()).
			Return(context.DeadlineExceeded)

		err := d.Deliver(context.Background(), env)
		s.Error(err)
		s.Contains(err.Error(), "not delivered")
		s.Contains(err.Error(), "jane@company.com")
	})

	s.Run("no collaborator configured is an error", func() {
		d, err := New(s.publisher, WithLogger(s.logger))
		s.Require().NoError(err)
		env := s.notificationEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false)

		s.Error(d.Deliver(context.Background(), env))
	})

	s.Run("event type without a collaborator is an error", func() {
		d := s.dispatcher()
		env := s.leaveEvent()

		s.publisher.EXPECT().Started().Return(true)
		s.publisher.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false)

		err := d.Deliver(context.Background(), env)
		s.Error(err)
		s.Contains(err.Error(), "no sync collaborator")
	})
}

func (s *DispatcherSuite) TestEnqueue() {
	s.Run("event is published in the background", func() {
		d := s.dispatcher()
		d.Start()
		env := s.leaveEvent()

		sent := make(chan struct{})
		s.publisher.EXPECT().
			Send(gomock.Any(), events.TopicLeave, env.Key(), env).
			DoAndReturn(func(context.Context, events.Topic, string, events.Envelope) bool {
				close(sent)
				return true
			})

		d.Enqueue(context.Background(), env)
		select {
		case <-sent:
		case <-time.After(2 * time.Second):
			s.Fail("background publish never happened")
		}
		s.NoError(d.Close(context.Background()))
	})

	s.Run("broker failure is dropped without touching a collaborator", func() {
		d := s.dispatcher()
		d.Start()
		env := s.leaveEvent()

		dropped := make(chan struct{})
		s.publisher.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, events.Topic, string, events.Envelope) bool {
				close(dropped)
				return false
			})

		d.Enqueue(context.Background(), env)
		select {
		case <-dropped:
		case <-time.After(2 * time.Second):
			s.Fail("background publish never happened")
		}
		s.NoError(d.Close(context.Background()))
	})

	s.Run("event type with no topic is dropped by the pool", func() {
		d := s.dispatcher(WithWorkers(1))
		d.Start()
		env := s.leaveEvent()
		env.EventType = "leave.retired_kind"

		// No Send expectation: the pool must not publish without a topic.
		d.Enqueue(context.Background(), env)
		s.NoError(d.Close(context.Background()))
	})

	s.Run("enqueue before start drops the event", func() {
		d := s.dispatcher()
		d.Enqueue(context.Background(), s.leaveEvent())
	})

	s.Run("enqueue with async disabled drops the event", func() {
		d := s.dispatcher(WithAsyncEnabled(false))
		d.Start()
		d.Enqueue(context.Background(), s.leaveEvent())
		s.NoError(d.Close(context.Background()))
	})

	s.Run("close drains queued events before returning", func() {
		d := s.dispatcher(WithWorkers(1))
		d.Start()

		for i := 0; i < 3; i++ {
			env := s.leaveEvent()
			s.publisher.EXPECT().
				Send(gomock.Any(), events.TopicLeave, env.Key(), env).
				Return(true)
			d.Enqueue(context.Background(), env)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.NoError(d.Close(ctx))
	})

	s.Run("close is idempotent", func() {
		d := s.dispatcher()
		d.Start()
		s.NoError(d.Close(context.Background()))
		s.NoError(d.Close(context.Background()))
	})
}
