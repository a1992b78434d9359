package rpc

import "testing"

func TestMethodCallRoundTrip(t *testing.T) {
	body := encodeMethodCall(7, "calc", "add", [][]byte{{1}, {2, 3}})[2:]
	id, service, method, args, err := decodeMethodCall(body)
	if err != nil {
		t.Fatalf("decodeMethodCall: %v", err)
	}
	if id != 7 || service != "calc" || method != "add" || len(args) != 2 ||
		string(args[0]) != "\x01" || string(args[1]) != "\x02\x03" {
		t.Errorf("decodeMethodCall = (%d, %q, %q, %v), want (7, %q, %q, [[1] [2 3]])",
			id, service, method, args, "calc", "add")
	}
}

func TestMethodCallNoReturnRoundTrip(t *testing.T) {
	body := encodeMethodCallNoReturn("notifier", "notify", [][]byte{[]byte("hi")})[2:]
	service, method, args, err := decodeMethodCallNoReturn(body)
	if err != nil {
		t.Fatalf("decodeMethodCallNoReturn: %v", err)
	}
	if service != "notifier" || method != "notify" || len(args) != 1 || string(args[0]) != "hi" {
		t.Errorf("decodeMethodCallNoReturn = (%q, %q, %v), want (%q, %q, [hi])", service, method, args, "notifier", "notify")
	}
}

func TestMethodReturnRoundTrip(t *testing.T) {
	body := encodeMethodReturn(42, []byte("result"))[2:]
	id, result, err := decodeMethodReturn(body)
	if err != nil {
		t.Fatalf("decodeMethodReturn: %v", err)
	}
	if id != 42 || string(result) != "result" {
		t.Errorf("decodeMethodReturn = (%d, %q), want (42, %q)", id, result, "result")
	}
}

func TestMethodExceptionRoundTrip(t *testing.T) {
	body := encodeMethodException(3, resultCode(ErrUnknownMethod), ErrUnknownMethod.Error())[2:]
	id, code, msg, err := decodeMethodException(body)
	if err != nil {
		t.Fatalf("decodeMethodException: %v", err)
	}
	want := resultCode(ErrUnknownMethod)
	if id != 3 || code != want || msg != ErrUnknownMethod.Error() {
		t.Errorf("decodeMethodException = (%d, %d, %q), want (3, %d, %q)", id, code, msg, want, ErrUnknownMethod.Error())
	}
}

func TestMethodCancelRoundTrip(t *testing.T) {
	body := encodeMethodCancel(99)[2:]
	id, err := decodeMethodCancel(body)
	if err != nil {
		t.Fatalf("decodeMethodCancel: %v", err)
	}
	if id != 99 {
		t.Errorf("decodeMethodCancel = %d, want 99", id)
	}
}

func TestServerInfoRoundTrip(t *testing.T) {
	body := encodeServerInfo(ProtocolVersion, true)[2:]
	version, requireAuth, err := decodeServerInfo(body)
	if err != nil {
		t.Fatalf("decodeServerInfo: %v", err)
	}
	if version != ProtocolVersion || !requireAuth {
		t.Errorf("decodeServerInfo = (%d, %v), want (%d, true)", version, requireAuth, ProtocolVersion)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	body := encodeAuthenticate("token-value")[2:]
	token, err := decodeAuthenticate(body)
	if err != nil {
		t.Fatalf("decodeAuthenticate: %v", err)
	}
	if token != "token-value" {
		t.Errorf("decodeAuthenticate = %q, want %q", token, "token-value")
	}
}

func TestAuthenticationResultRoundTrip(t *testing.T) {
	body := encodeAuthenticationResult(false, "bad token")[2:]
	ok, msg, err := decodeAuthenticationResult(body)
	if err != nil {
		t.Fatalf("decodeAuthenticationResult: %v", err)
	}
	if ok || msg != "bad token" {
		t.Errorf("decodeAuthenticationResult = (%v, %q), want (false, %q)", ok, msg, "bad token")
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	if _, _, _, _, err := decodeMethodCall(nil); err == nil {
		t.Error("decodeMethodCall(nil): got nil error, want a truncation error")
	}
}
