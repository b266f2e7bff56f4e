package telegram

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/domain/payout"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *telebot.SendOptions
}

type fakeClient struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, opts: options})
	return nil
}

func (f *fakeClient) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// fakeContext implements the parts of telebot.Context the handlers touch.
type fakeContext struct {
	telebot.Context

	sender   *telebot.User
	args     []string
	callback *telebot.Callback
	message  *telebot.Message

	sent      []string
	edited    []string
	responses []*telebot.CallbackResponse
}

func (c *fakeContext) Sender() *telebot.User       { return c.sender }
func (c *fakeContext) Args() []string              { return c.args }
func (c *fakeContext) Callback() *telebot.Callback { return c.callback }
func (c *fakeContext) Message() *telebot.Message   { return c.message }

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what.(string))
	return nil
}

func (c *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	c.edited = append(c.edited, what.(string))
	return nil
}

func (c *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) lastSent() string {
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

type fakeReader struct {
	active  bool
	round   int64
	left    int64
	canExec bool
}

func (r fakeReader) GroupActive(context.Context) (bool, error) { return r.active, nil }
func (r fakeReader) CurrentRound(context.Context) (*big.Int, error) {
	return big.NewInt(r.round), nil
}
func (r fakeReader) RoundDeadline(context.Context) (*big.Int, error) { return big.NewInt(0), nil }
func (r fakeReader) TimeUntilDeadline(context.Context) (*big.Int, error) {
	return big.NewInt(r.left), nil
}
func (r fakeReader) CanExecutePayout(context.Context) (bool, []byte, error) {
	return r.canExec, nil, nil
}

type fakeReaders map[common.Address]fakeReader

func (f fakeReaders) Reader(addr common.Address) (payout.ChainReader, error) {
	r, ok := f[addr]
	if !ok {
		return nil, errors.New("unknown group")
	}
	return r, nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
