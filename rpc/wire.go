package rpc

import (
	"fmt"

	"github.com/ashgrove-labs/mailmux/packet"
)

func encodeMethodCall(id uint16, service, method string, args [][]byte) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(MethodCall))
	b.Uint16(id)
	b.VPutString(service)
	b.VPutString(method)
	b.PutArgs(args)
	return b.Bytes()
}

func decodeMethodCall(body []byte) (id uint16, service, method string, args [][]byte, err error) {
	s := packet.NewScanner(body)
	if id, err = s.Uint16(); err != nil {
		return 0, "", "", nil, fmt.Errorf("rpc: decode MethodCall id: %w", err)
	}
	if service, err = packet.VGet[string](s); err != nil {
		return 0, "", "", nil, fmt.Errorf("rpc: decode MethodCall service: %w", err)
	}
	if method, err = packet.VGet[string](s); err != nil {
		return 0, "", "", nil, fmt.Errorf("rpc: decode MethodCall method: %w", err)
	}
	if args, err = packet.GetArgs(s); err != nil {
		return 0, "", "", nil, fmt.Errorf("rpc: decode MethodCall args: %w", err)
	}
	return id, service, method, args, nil
}

func encodeMethodCallNoReturn(service, method string, args [][]byte) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(MethodCallNoReturn))
	b.VPutString(service)
	b.VPutString(method)
	b.PutArgs(args)
	return b.Bytes()
}

func decodeMethodCallNoReturn(body []byte) (service, method string, args [][]byte, err error) {
	s := packet.NewScanner(body)
	if service, err = packet.VGet[string](s); err != nil {
		return "", "", nil, fmt.Errorf("rpc: decode MethodCallNoReturn service: %w", err)
	}
	if method, err = packet.VGet[string](s); err != nil {
		return "", "", nil, fmt.Errorf("rpc: decode MethodCallNoReturn method: %w", err)
	}
	if args, err = packet.GetArgs(s); err != nil {
		return "", "", nil, fmt.Errorf("rpc: decode MethodCallNoReturn args: %w", err)
	}
	return service, method, args, nil
}

func encodeMethodReturn(id uint16, result []byte) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(MethodReturn))
	b.Uint16(id)
	b.VPut(result)
	return b.Bytes()
}

func decodeMethodReturn(body []byte) (id uint16, result []byte, err error) {
	s := packet.NewScanner(body)
	if id, err = s.Uint16(); err != nil {
		return 0, nil, fmt.Errorf("rpc: decode MethodReturn id: %w", err)
	}
	if result, err = packet.VGet[[]byte](s); err != nil {
		return 0, nil, fmt.Errorf("rpc: decode MethodReturn result: %w", err)
	}
	return id, result, nil
}

func encodeMethodException(id uint16, code uint32, message string) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(MethodException))
	b.Uint16(id)
	b.Uint32(code)
	b.VPutString(message)
	return b.Bytes()
}

func decodeMethodException(body []byte) (id uint16, code uint32, message string, err error) {
	s := packet.NewScanner(body)
	if id, err = s.Uint16(); err != nil {
		return 0, 0, "", fmt.Errorf("rpc: decode MethodException id: %w", err)
	}
	if code, err = s.Uint32(); err != nil {
		return 0, 0, "", fmt.Errorf("rpc: decode MethodException code: %w", err)
	}
	if message, err = packet.VGet[string](s); err != nil {
		return 0, 0, "", fmt.Errorf("rpc: decode MethodException message: %w", err)
	}
	return id, code, message, nil
}

func encodeMethodCancel(id uint16) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(MethodCancel))
	b.Uint16(id)
	return b.Bytes()
}

func decodeMethodCancel(body []byte) (id uint16, err error) {
	s := packet.NewScanner(body)
	if id, err = s.Uint16(); err != nil {
		return 0, fmt.Errorf("rpc: decode MethodCancel id: %w", err)
	}
	return id, nil
}

func encodeServerInfo(protocolVersion uint32, requireAuth bool) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(ServerInfo))
	b.Uint32(protocolVersion)
	b.Bool(requireAuth)
	return b.Bytes()
}

func decodeServerInfo(body []byte) (protocolVersion uint32, requireAuth bool, err error) {
	s := packet.NewScanner(body)
	if protocolVersion, err = s.Uint32(); err != nil {
		return 0, false, fmt.Errorf("rpc: decode ServerInfo version: %w", err)
	}
	if requireAuth, err = s.Bool(); err != nil {
		return 0, false, fmt.Errorf("rpc: decode ServerInfo requireAuth: %w", err)
	}
	return protocolVersion, requireAuth, nil
}

func encodeAuthenticate(token string) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(Authenticate))
	b.VPutString(token)
	return b.Bytes()
}

func decodeAuthenticate(body []byte) (token string, err error) {
	s := packet.NewScanner(body)
	if token, err = packet.VGet[string](s); err != nil {
		return "", fmt.Errorf("rpc: decode Authenticate token: %w", err)
	}
	return token, nil
}

func encodeAuthenticationResult(ok bool, message string) []byte {
	var b packet.Builder
	b.Put(handlerID)
	b.Put(byte(AuthenticationResult))
	b.Bool(ok)
	b.VPutString(message)
	return b.Bytes()
}

func decodeAuthenticationResult(body []byte) (ok bool, message string, err error) {
	s := packet.NewScanner(body)
	if ok, err = s.Bool(); err != nil {
		return false, "", fmt.Errorf("rpc: decode AuthenticationResult ok: %w", err)
	}
	if message, err = packet.VGet[string](s); err != nil {
		return false, "", fmt.Errorf("rpc: decode AuthenticationResult message: %w", err)
	}
	return ok, message, nil
}
