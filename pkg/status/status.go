// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package status holds the HTTP status code table.
package status

import (
	"fmt"

	mherrors "github.com/absmach/mhttp/pkg/errors"
)

// Status is a registered status code with its symbolic name and default
// reason phrase.
type Status struct {
	Code   int
	Symbol string
	Reason string
}

// String returns "404 Not Found".
func (s Status) String() string {
	return fmt.Sprintf("%d %s", s.Code, s.Reason)
}

// IsZero reports whether s is the zero Status.
func (s Status) IsZero() bool {
	return s.Code == 0
}

var (
	Continue                      = Status{100, "CONTINUE", "Continue"}
	SwitchingProtocols            = Status{101, "SWITCHING_PROTOCOLS", "Switching Protocols"}
	Processing                    = Status{102, "PROCESSING", "Processing"}
	EarlyHints                    = Status{103, "EARLY_HINTS", "Early Hints"}
	OK                            = Status{200, "OK", "OK"}
	Created                       = Status{201, "CREATED", "Created"}
	Accepted                      = Status{202, "ACCEPTED", "Accepted"}
	NonAuthoritativeInformation   = Status{203, "NON_AUTHORITATIVE_INFORMATION", "Non-Authoritative Information"}
	NoContent                     = Status{204, "NO_CONTENT", "No Content"}
	ResetContent                  = Status{205, "RESET_CONTENT", "Reset Content"}
	PartialContent                = Status{206, "PARTIAL_CONTENT", "Partial Content"}
	MultiStatus                   = Status{207, "MULTI_STATUS", "Multi-Status"}
	AlreadyReported               = Status{208, "ALREADY_REPORTED", "Already Reported"}
	IMUsed                        = Status{226, "IM_USED", "IM Used"}
	MultipleChoices               = Status{300, "MULTIPLE_CHOICES", "Multiple Choices"}
	MovedPermanently              = Status{301, "MOVED_PERMANENTLY", "Moved Permanently"}
	MovedTemporarily              = Status{302, "MOVED_TEMPORARILY", "Moved Temporarily"}
	SeeOther                      = Status{303, "SEE_OTHER", "See Other"}
	NotModified                   = Status{304, "NOT_MODIFIED", "Not Modified"}
	UseProxy                      = Status{305, "USE_PROXY", "Use Proxy"}
	TemporaryRedirect             = Status{307, "TEMPORARY_REDIRECT", "Temporary Redirect"}
	PermanentRedirect             = Status{308, "PERMANENT_REDIRECT", "Permanent Redirect"}
	BadRequest                    = Status{400, "BAD_REQUEST", "Bad Request"}
	Unauthorized                  = Status{401, "UNAUTHORIZED", "Unauthorized"}
	PaymentRequired               = Status{402, "PAYMENT_REQUIRED", "Payment Required"}
	Forbidden                     = Status{403, "FORBIDDEN", "Forbidden"}
	NotFound                      = Status{404, "NOT_FOUND", "Not Found"}
	MethodNotAllowed              = Status{405, "METHOD_NOT_ALLOWED", "Method Not Allowed"}
	NotAcceptable                 = Status{406, "NOT_ACCEPTABLE", "Not Acceptable"}
	ProxyAuthenticationRequired   = Status{407, "PROXY_AUTHENTICATION_REQUIRED", "Proxy Authentication Required"}
	RequestTimeout                = Status{408, "REQUEST_TIMEOUT", "Request Timeout"}
	Conflict                      = Status{409, "CONFLICT", "Conflict"}
	Gone                          = Status{410, "GONE", "Gone"}
	LengthRequired                = Status{411, "LENGTH_REQUIRED", "Length Required"}
	PreconditionFailed            = Status{412, "PRECONDITION_FAILED", "Precondition Failed"}
	RequestTooLong                = Status{413, "REQUEST_TOO_LONG", "Request Entity Too Large"}
	RequestURITooLong             = Status{414, "REQUEST_URI_TOO_LONG", "Request-URI Too Long"}
	UnsupportedMediaType          = Status{415, "UNSUPPORTED_MEDIA_TYPE", "Unsupported Media Type"}
	RequestedRangeNotSatisfiable  = Status{416, "REQUESTED_RANGE_NOT_SATISFIABLE", "Requested Range Not Satisfiable"}
	ExpectationFailed             = Status{417, "EXPECTATION_FAILED", "Expectation Failed"}
	InsufficientSpaceOnResource   = Status{419, "INSUFFICIENT_SPACE_ON_RESOURCE", "Insufficient Space on Resource"}
	MethodFailure                 = Status{420, "METHOD_FAILURE", "Method Failure"}
	MisdirectedRequest            = Status{421, "MISDIRECTED_REQUEST", "Misdirected Request"}
	UnprocessableEntity           = Status{422, "UNPROCESSABLE_ENTITY", "Unprocessable Entity"}
	Locked                        = Status{423, "LOCKED", "Locked"}
	FailedDependency              = Status{424, "FAILED_DEPENDENCY", "Failed Dependency"}
	PreconditionRequired          = Status{428, "PRECONDITION_REQUIRED", "Precondition Required"}
	TooManyRequests               = Status{429, "TOO_MANY_REQUESTS", "Too Many Requests"}
	RequestHeaderFieldsTooLarge   = Status{431, "REQUEST_HEADER_FIELDS_TOO_LARGE", "Request Header Fields Too Large"}
	UnavailableForLegalReasons    = Status{451, "UNAVAILABLE_FOR_LEGAL_REASONS", "Unavailable For Legal Reasons"}
	InternalServerError           = Status{500, "INTERNAL_SERVER_ERROR", "Internal Server Error"}
	NotImplemented                = Status{501, "NOT_IMPLEMENTED", "Not Implemented"}
	BadGateway                    = Status{502, "BAD_GATEWAY", "Bad Gateway"}
	ServiceUnavailable            = Status{503, "SERVICE_UNAVAILABLE", "Service Unavailable"}
	GatewayTimeout                = Status{504, "GATEWAY_TIMEOUT", "Gateway Timeout"}
	HTTPVersionNotSupported       = Status{505, "HTTP_VERSION_NOT_SUPPORTED", "HTTP Version Not Supported"}
	VariantAlsoNegotiates         = Status{506, "VARIANT_ALSO_NEGOTIATES", "Variant Also Negotiates"}
	InsufficientStorage           = Status{507, "INSUFFICIENT_STORAGE", "Insufficient Storage"}
	LoopDetected                  = Status{508, "LOOP_DETECTED", "Loop Detected"}
	NotExtended                   = Status{510, "NOT_EXTENDED", "Not Extended"}
	NetworkAuthenticationRequired = Status{511, "NETWORK_AUTHENTICATION_REQUIRED", "Network Authentication Required"}
)

var table = index(
	Continue, SwitchingProtocols, Processing, EarlyHints,
	OK, Created, Accepted, NonAuthoritativeInformation, NoContent, ResetContent,
	PartialContent, MultiStatus, AlreadyReported, IMUsed,
	MultipleChoices, MovedPermanently, MovedTemporarily, SeeOther, NotModified,
	UseProxy, TemporaryRedirect, PermanentRedirect,
	BadRequest, Unauthorized, PaymentRequired, Forbidden, NotFound,
	MethodNotAllowed, NotAcceptable, ProxyAuthenticationRequired, RequestTimeout,
	Conflict, Gone, LengthRequired, PreconditionFailed, RequestTooLong,
	RequestURITooLong, UnsupportedMediaType, RequestedRangeNotSatisfiable,
	ExpectationFailed, InsufficientSpaceOnResource, MethodFailure,
	MisdirectedRequest, UnprocessableEntity, Locked, FailedDependency,
	PreconditionRequired, TooManyRequests, RequestHeaderFieldsTooLarge,
	UnavailableForLegalReasons,
	InternalServerError, NotImplemented, BadGateway, ServiceUnavailable,
	GatewayTimeout, HTTPVersionNotSupported, VariantAlsoNegotiates,
	InsufficientStorage, LoopDetected, NotExtended, NetworkAuthenticationRequired,
)

func index(all ...Status) map[int]Status {
	m := make(map[int]Status, len(all))
	for _, s := range all {
		m[s.Code] = s
	}
	return m
}

// ForCode returns the registered status for code.
func ForCode(code int) (Status, error) {
	s, ok := table[code]
	if !ok {
		return Status{}, fmt.Errorf("%w: %d", mherrors.ErrUnknownStatusCode, code)
	}
	return s, nil
}

// Class returns the first digit of the code, or 0 outside 100..599.
func (s Status) Class() int {
	if s.Code < 100 || s.Code > 599 {
		return 0
	}
	return s.Code / 100
}
