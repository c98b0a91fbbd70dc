package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// FailureKind buckets homepage fetch failures for user-facing reporting.
type FailureKind string

const (
	FailureDNS        FailureKind = "dns"
	FailureConnection FailureKind = "connection"
	FailureTLS        FailureKind = "tls"
	FailureTimeout    FailureKind = "timeout"
	FailureForbidden  FailureKind = "forbidden"
	FailureNotFound   FailureKind = "not_found"
	FailureServer     FailureKind = "server_error"
	FailureOther      FailureKind = "other"
)

// FailureReason is the classified outcome of a failed homepage fetch. Details
// is written for the end user, in Japanese, and is what the API surfaces in a
// 422 response.
type FailureReason struct {
	Kind    FailureKind `json:"kind"`
	Status  int         `json:"status,omitempty"`
	Details string      `json:"details"`
	cause   error
}

func (r *FailureReason) Error() string {
	if r.cause != nil {
		return fmt.Sprintf("fetcher: %s: %v", r.Kind, r.cause)
	}
	return fmt.Sprintf("fetcher: %s (%d)", r.Kind, r.Status)
}

func (r *FailureReason) Unwrap() error { return r.cause }

// ClassifyError turns a transport-level fetch error into a FailureReason.
func ClassifyError(err error) *FailureReason {
	reason := &FailureReason{Kind: FailureOther, cause: err}

	var dnsErr *net.DNSError
	var tlsRecordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var netErr net.Error

	switch {
	case errors.As(err, &dnsErr) || strings.Contains(err.Error(), "no such host"):
		reason.Kind = FailureDNS
		reason.Details = "ドメイン名を解決できませんでした。URLが正しいかご確認ください。"
	case errors.As(err, &tlsRecordErr) || errors.As(err, &certErr) ||
		strings.Contains(err.Error(), "tls:") ||
		strings.Contains(err.Error(), "certificate"):
		reason.Kind = FailureTLS
		reason.Details = "SSL/TLS接続に失敗しました。サイトの証明書に問題がある可能性があります。"
	case errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET):
		reason.Kind = FailureConnection
		reason.Details = "サーバーに接続できませんでした。サイトが停止している可能性があります。"
	case errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) ||
		strings.Contains(err.Error(), "context deadline exceeded"):
		reason.Kind = FailureTimeout
		reason.Details = "接続がタイムアウトしました。サイトの応答が非常に遅いか、到達できません。"
	default:
		reason.Details = "ホームページを取得できませんでした。URLをご確認のうえ、時間をおいて再度お試しください。"
	}
	return reason
}

// ClassifyStatus turns a non-success homepage HTTP status into a FailureReason.
func ClassifyStatus(status int) *FailureReason {
	reason := &FailureReason{Status: status}
	switch {
	case status == 403:
		reason.Kind = FailureForbidden
		reason.Details = "アクセスが拒否されました（403）。サイトがクローラーをブロックしている可能性があります。"
	case status == 404:
		reason.Kind = FailureNotFound
		reason.Details = "ページが見つかりませんでした（404）。URLが正しいかご確認ください。"
	case status >= 500:
		reason.Kind = FailureServer
		reason.Details = fmt.Sprintf("サーバーエラーが発生しました（%d）。時間をおいて再度お試しください。", status)
	default:
		reason.Kind = FailureOther
		reason.Details = fmt.Sprintf("ホームページの取得に失敗しました（HTTP %d）。", status)
	}
	return reason
}

// Retryable reports whether a homepage failure is worth another transparent
// attempt. 403/404 are deterministic and 5xx is left to the caller to report
// as transient; only transport-level failures get retried here.
func (r *FailureReason) Retryable() bool {
	switch r.Kind {
	case FailureForbidden, FailureNotFound, FailureServer:
		return false
	}
	return true
}
