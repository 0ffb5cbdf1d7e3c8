package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sushef/internal/relay"
	"github.com/m3rciful/sushef/internal/session"
)

type invoiceCall struct {
	kind   relay.Kind
	chatID int64
	source string
}

type fakeRelay struct {
	invoices []invoiceCall
	searches []string
	clears   int

	invoiceErr error
	result     relay.Result
}

func (f *fakeRelay) SendInvoice(_ context.Context, kind relay.Kind, chatID int64, source string) (relay.Result, error) {
	f.invoices = append(f.invoices, invoiceCall{kind: kind, chatID: chatID, source: source})
	if f.invoiceErr != nil {
		return relay.Result{}, f.invoiceErr
	}
	return f.result, nil
}

func (f *fakeRelay) SearchDashboard(_ context.Context, query string, _ int64) relay.Result {
	f.searches = append(f.searches, query)
	return f.result
}

func (f *fakeRelay) ClearDashboard(context.Context, int64) relay.Result {
	f.clears++
	return f.result
}

type recorder struct {
	replies []Reply
}

func (r *recorder) Reply(_ context.Context, rep Reply) error {
	r.replies = append(r.replies, rep)
	return nil
}

func (r *recorder) last() Reply {
	if len(r.replies) == 0 {
		return Reply{}
	}
	return r.replies[len(r.replies)-1]
}

const (
	testUser = int64(7)
	testChat = int64(70)
	testDash = "https://example.test/dashboard"
)

func newTestDispatcher(rel *fakeRelay) (*Dispatcher, *session.Adapter) {
	sessions := session.NewAdapter(session.NewMemoryStore())
	return New(Options{Sessions: sessions, Relay: rel, DashboardURL: testDash}), sessions
}

func command(name string) Event {
	return Event{Kind: EventCommand, UserID: testUser, ChatID: testChat, Name: name}
}

func TestHandleCommandsPersistMode(t *testing.T) {
	d, sessions := newTestDispatcher(&fakeRelay{})
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
	assert.Equal(t, session.ModeSupply, sessions.Get(ctx, testUser))
	assert.Equal(t, textSupplyIntro, out.last().Text)

	require.NoError(t, d.Handle(ctx, command(CommandDashboard), out))
	assert.Equal(t, session.ModeDashboard, sessions.Get(ctx, testUser))
	assert.Equal(t, []Button{clearButton}, out.last().Buttons)

	require.NoError(t, d.Handle(ctx, command(CommandStart), out))
	assert.Equal(t, session.ModeIdle, sessions.Get(ctx, testUser))
	assert.Equal(t, textGreeting, out.last().Text)
}

func TestHandlePhotoInSupplyRelaysOnce(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
	out.replies = nil

	require.NoError(t, d.Handle(ctx, Event{Kind: EventPhoto, UserID: testUser, ChatID: testChat, FileRef: "photo-1"}, out))

	require.Len(t, rel.invoices, 1)
	assert.Equal(t, invoiceCall{kind: relay.KindPhoto, chatID: testChat, source: "photo-1"}, rel.invoices[0])
	require.Len(t, out.replies, 2)
	assert.True(t, out.replies[0].Progress)
	assert.Equal(t, textProgressPhoto, out.replies[0].Text)
	assert.Equal(t, textInvoiceAdded, out.replies[1].Text)
	assert.Equal(t, []Button{resetButton}, out.replies[1].Buttons)
}

func TestHandlePhotoOutsideSupplyNamesMode(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandDashboard), out))
	require.NoError(t, d.Handle(ctx, Event{Kind: EventPhoto, UserID: testUser, ChatID: testChat, FileRef: "p"}, out))

	assert.Empty(t, rel.invoices)
	assert.Contains(t, out.last().Text, `"dashboard"`)
	assert.Contains(t, out.last().Text, "/supply")
}

func TestHandleJPEGDocumentNeverRelayed(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
	require.NoError(t, d.Handle(ctx, Event{
		Kind: EventDocument, UserID: testUser, ChatID: testChat, FileRef: "d", MIMEType: MIMEJPEG,
	}, out))

	assert.Empty(t, rel.invoices)
	assert.Equal(t, textCompressHint, out.last().Text)
}

func TestHandlePDFInSupply(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
	require.NoError(t, d.Handle(ctx, Event{
		Kind: EventDocument, UserID: testUser, ChatID: testChat, FileRef: "doc-9", MIMEType: "application/pdf",
	}, out))

	require.Len(t, rel.invoices, 1)
	assert.Equal(t, relay.KindPDF, rel.invoices[0].kind)
	assert.Equal(t, "doc-9", rel.invoices[0].source)
}

func TestHandleSupplyTextScenario(t *testing.T) {
	rel := &fakeRelay{result: relay.Success([]byte(`{"ok":true}`))}
	d, sessions := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
	text := "ТОО Океан, креветки 5 кг по 3000"
	require.NoError(t, d.Handle(ctx, Event{Kind: EventText, UserID: testUser, ChatID: testChat, Text: text}, out))

	require.Len(t, rel.invoices, 1)
	assert.Equal(t, invoiceCall{kind: relay.KindText, chatID: testChat, source: text}, rel.invoices[0])
	assert.Equal(t, textInvoiceAdded, out.last().Text)
	assert.Equal(t, session.ModeSupply, sessions.Get(ctx, testUser))

	out.replies = nil
	require.NoError(t, d.Handle(ctx, Event{Kind: EventCallback, UserID: testUser, ChatID: testChat, Name: CallbackReset}, out))
	assert.Equal(t, session.ModeIdle, sessions.Get(ctx, testUser))
	assert.Equal(t, textResetConfirm, out.last().Text)
}

func TestHandleRelayFailureGivesSingleGenericReply(t *testing.T) {
	cases := map[string]*fakeRelay{
		"backend":    {result: relay.Failure("status 500")},
		"attachment": {invoiceErr: errors.New("getFile: not found")},
	}
	for name, rel := range cases {
		t.Run(name, func(t *testing.T) {
			d, _ := newTestDispatcher(rel)
			ctx := context.Background()
			out := &recorder{}

			require.NoError(t, d.Handle(ctx, command(CommandSupply), out))
			out.replies = nil
			require.NoError(t, d.Handle(ctx, Event{Kind: EventPhoto, UserID: testUser, ChatID: testChat, FileRef: "p"}, out))

			assert.Len(t, rel.invoices, 1)
			require.Len(t, out.replies, 2)
			assert.Equal(t, textInvoiceFailed, out.replies[1].Text)
			assert.Empty(t, out.replies[1].Buttons)
		})
	}
}

func TestHandleDashboardSearch(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandDashboard), out))
	out.replies = nil
	require.NoError(t, d.Handle(ctx, Event{Kind: EventText, UserID: testUser, ChatID: testChat, Text: "Креветки"}, out))

	assert.Equal(t, []string{"Креветки"}, rel.searches)
	require.Len(t, out.replies, 2)
	assert.Equal(t, textProgressSearch, out.replies[0].Text)
	assert.Contains(t, out.replies[1].Text, testDash)
	assert.Equal(t, []Button{clearButton}, out.replies[1].Buttons)
}

func TestHandleSearchFailure(t *testing.T) {
	rel := &fakeRelay{result: relay.Failure("timeout")}
	d, _ := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, command(CommandDashboard), out))
	require.NoError(t, d.Handle(ctx, Event{Kind: EventText, UserID: testUser, ChatID: testChat, Text: "вчера"}, out))
	assert.Equal(t, textSearchFailed, out.last().Text)
}

func TestHandleClearTableWorksInAnyModeAndKeepsMode(t *testing.T) {
	for _, mode := range allModes {
		rel := &fakeRelay{result: relay.Success(nil)}
		d, sessions := newTestDispatcher(rel)
		ctx := context.Background()
		sessions.Set(ctx, testUser, mode, nil)
		out := &recorder{}

		require.NoError(t, d.Handle(ctx, Event{Kind: EventCallback, UserID: testUser, ChatID: testChat, Name: CallbackClearTable}, out))
		assert.Equal(t, 1, rel.clears)
		assert.Equal(t, textCleared, out.last().Text)
		assert.Equal(t, mode, sessions.Get(ctx, testUser))
	}
}

func TestHandleClearTableFailure(t *testing.T) {
	rel := &fakeRelay{result: relay.Failure("status 502")}
	d, sessions := newTestDispatcher(rel)
	ctx := context.Background()
	sessions.Set(ctx, testUser, session.ModeDashboard, nil)
	out := &recorder{}

	require.NoError(t, d.Handle(ctx, Event{Kind: EventCallback, UserID: testUser, ChatID: testChat, Name: CallbackClearTable}, out))
	assert.Equal(t, textClearFailed, out.last().Text)
	assert.Equal(t, session.ModeDashboard, sessions.Get(ctx, testUser))
}

func TestHandleLastCommandWins(t *testing.T) {
	rel := &fakeRelay{result: relay.Success(nil)}
	d, sessions := newTestDispatcher(rel)
	ctx := context.Background()
	out := &recorder{}

	for _, name := range []string{CommandSupply, CommandDashboard, CommandSupply, CommandStart, CommandDashboard} {
		require.NoError(t, d.Handle(ctx, command(name), out))
	}
	assert.Equal(t, session.ModeDashboard, sessions.Get(ctx, testUser))

	require.NoError(t, d.Handle(ctx, Event{Kind: EventText, UserID: testUser, ChatID: testChat, Text: "Океан"}, out))
	assert.Empty(t, rel.invoices)
	assert.Len(t, rel.searches, 1)
}

func TestHandleIdleTextPromptsForCommand(t *testing.T) {
	rel := &fakeRelay{}
	d, _ := newTestDispatcher(rel)
	out := &recorder{}

	require.NoError(t, d.Handle(context.Background(), Event{Kind: EventText, UserID: testUser, ChatID: testChat, Text: "hi"}, out))
	assert.Equal(t, textChooseCommand, out.last().Text)
	assert.Empty(t, rel.invoices)
	assert.Empty(t, rel.searches)
}

func TestHandleInspect(t *testing.T) {
	d, sessions := newTestDispatcher(&fakeRelay{})
	ctx := context.Background()
	sessions.Set(ctx, 42, session.ModeSupply, map[string]any{"step": "await_file"})

	out := &recorder{}
	ev := command(CommandState)
	ev.Args = "42"
	require.NoError(t, d.Handle(ctx, ev, out))
	rep := out.last()
	assert.True(t, rep.Markdown)
	assert.Contains(t, rep.Text, "user\\_id: 42")
	assert.Contains(t, rep.Text, "current\\_state: supply")
	assert.Contains(t, rep.Text, "await\\_file")

	ev.Args = "99"
	require.NoError(t, d.Handle(ctx, ev, out))
	assert.Contains(t, out.last().Text, "99")
	assert.False(t, out.last().Markdown)

	ev.Args = "abc"
	require.NoError(t, d.Handle(ctx, ev, out))
	assert.Equal(t, textInspectUsage, out.last().Text)
}
