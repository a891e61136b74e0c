package kis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoResponse 表示重试用尽后仍未收到任何响应（传输层失败）。
// 业务层拒绝不会返回该错误，而是带着 Envelope 返回 *APIError。
var ErrNoResponse = errors.New("kis: no response from broker")

// ErrTokenUnavailable 表示令牌签发失败，请求未发出。
var ErrTokenUnavailable = errors.New("kis: access token unavailable")

// Envelope is the uniform KIS response shape: a success flag (rt_cd),
// a business code (msg_cd), a human message (msg1) and the raw payload.
// Typed accessors read the payload; callers never touch raw bodies.
type Envelope struct {
	RtCd  string
	MsgCd string
	Msg1  string
	raw   []byte
}

func parseEnvelope(body []byte) Envelope {
	root := gjson.ParseBytes(body)
	return Envelope{
		RtCd:  root.Get("rt_cd").String(),
		MsgCd: root.Get("msg_cd").String(),
		Msg1:  strings.TrimSpace(root.Get("msg1").String()),
		raw:   body,
	}
}

// OK 表示业务层接受（rt_cd == "0"）。
func (e Envelope) OK() bool { return e.RtCd == "0" }

// Output returns the single-object payload (`output`).
func (e Envelope) Output() gjson.Result { return gjson.GetBytes(e.raw, "output") }

// Output1 returns the first array payload (`output1`, e.g. balance holdings).
func (e Envelope) Output1() gjson.Result { return gjson.GetBytes(e.raw, "output1") }

// Output2 returns the second payload (`output2`, e.g. balance summary rows
// or daily chart bars).
func (e Envelope) Output2() gjson.Result { return gjson.GetBytes(e.raw, "output2") }

// Err converts a business rejection into a typed error, nil when OK.
func (e Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return &APIError{Code: e.MsgCd, Message: e.Msg1}
}

// APIError 表示券商收到请求但明确拒绝（业务失败，不自动重试）。
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kis: broker rejected request (code=%s)", e.Code)
	}
	return fmt.Sprintf("kis: %s (code=%s)", e.Message, e.Code)
}

// IsBusinessError reports whether err carries a broker-side rejection.
func IsBusinessError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
