package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

// rpcServer answers every request with the value returned by reply.
// A reply of type rpcFailure is sent as a JSON-RPC error.
type rpcFailure struct {
	Code    int
	Message string
}

func rpcServer(t *testing.T, reply func(req rpcRequest) any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		switch v := reply(req).(type) {
		case rpcFailure:
			resp["error"] = map[string]any{"code": v.Code, "message": v.Message}
		default:
			resp["result"] = v
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		opts, _ := req.Params[1].(map[string]any)
		if opts["commitment"] != DefaultCommitment {
			t.Errorf("expected commitment %s, got %v", DefaultCommitment, opts["commitment"])
		}

		return map[string]any{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]any{
				"err":          nil,
				"fee":          5000,
				"logMessages":  []string{"Program log: Hello", "Program log: World"},
				"preBalances":  []uint64{2000000000, 0},
				"postBalances": []uint64{1000000000, 0},
				"preTokenBalances": []map[string]any{
					{"accountIndex": 1, "mint": "mint1", "owner": "addr1", "uiTokenAmount": map[string]any{"amount": "0", "decimals": 6}},
				},
				"postTokenBalances": []map[string]any{
					{"accountIndex": 1, "mint": "mint1", "owner": "addr1", "uiTokenAmount": map[string]any{"amount": "25000000", "decimals": 6}},
				},
				"innerInstructions": []map[string]any{
					{"index": 0, "instructions": []map[string]any{
						{"programIdIndex": 3, "accounts": []int{1, 2}, "data": "3Bxs4h24hBtQy9rw"},
					}},
				},
				"loadedAddresses": map[string]any{
					"writable": []string{"addr3"},
					"readonly": []string{"addr4"},
				},
			},
			"transaction": map[string]any{
				"signatures": []string{"testsig123"},
				"message": map[string]any{
					"header": map[string]any{
						"numRequiredSignatures":       1,
						"numReadonlySignedAccounts":   0,
						"numReadonlyUnsignedAccounts": 1,
					},
					"accountKeys":     []string{"addr1", "addr2"},
					"recentBlockhash": "hash1",
					"instructions": []map[string]any{
						{"programIdIndex": 2, "accounts": []int{0, 1}, "data": "3Bxs4h24hBtQy9rw"},
					},
				},
			},
		}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	tx, err := client.GetTransaction(ctx, "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}

	if tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %d", tx.BlockTime)
	}

	if tx.Meta == nil {
		t.Fatal("expected meta, got nil")
	}

	if tx.Meta.Fee != 5000 {
		t.Errorf("expected fee 5000, got %d", tx.Meta.Fee)
	}

	if len(tx.Meta.PostTokenBalances) != 1 || tx.Meta.PostTokenBalances[0].Amount != "25000000" {
		t.Errorf("unexpected post token balances: %+v", tx.Meta.PostTokenBalances)
	}

	if tx.Meta.PostTokenBalances[0].Decimals != 6 {
		t.Errorf("expected decimals 6, got %d", tx.Meta.PostTokenBalances[0].Decimals)
	}

	if len(tx.Meta.InnerInstructions) != 1 || len(tx.Meta.InnerInstructions[0].Instructions) != 1 {
		t.Fatalf("unexpected inner instructions: %+v", tx.Meta.InnerInstructions)
	}

	if tx.Message == nil {
		t.Fatal("expected message, got nil")
	}

	if len(tx.Message.Instructions) != 1 || tx.Message.Instructions[0].ProgramIDIndex != 2 {
		t.Errorf("unexpected instructions: %+v", tx.Message.Instructions)
	}

	keys := tx.AllAccountKeys()
	want := []string{"addr1", "addr2", "addr3", "addr4"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d account keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}

	// signer, readonly program, loaded writable, loaded readonly
	wantWritable := []bool{true, false, true, false}
	for i, w := range wantWritable {
		if got := tx.IsWritable(i); got != w {
			t.Errorf("IsWritable(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		return nil
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	tx, err := client.GetTransaction(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		if req.Method != "getLatestBlockhash" {
			t.Errorf("expected method getLatestBlockhash, got %s", req.Method)
		}
		return map[string]any{
			"context": map[string]any{"slot": 77},
			"value": map[string]any{
				"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
				"lastValidBlockHeight": 3090,
			},
		}
	})

	client := NewHTTPClient(server.URL)

	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}

	if bh.Hash != "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N" {
		t.Errorf("unexpected hash: %s", bh.Hash)
	}

	if bh.LastValidBlockHeight != 3090 || bh.Slot != 77 {
		t.Errorf("unexpected blockhash: %+v", bh)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	sig := base58.Encode(make([]byte, 64))
	raw := []byte{1, 2, 3, 4}

	server := rpcServer(t, func(req rpcRequest) any {
		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected payload: %v", req.Params[0])
		}
		opts, _ := req.Params[1].(map[string]any)
		if opts["encoding"] != "base64" || opts["skipPreflight"] != false {
			t.Errorf("unexpected send options: %v", opts)
		}
		return sig
	})

	client := NewHTTPClient(server.URL)

	got, err := client.SendTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}

	if got != sig {
		t.Errorf("expected %s, got %s", sig, got)
	}
}

func TestHTTPClient_SendTransaction_NoRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.SendTransaction(context.Background(), []byte{1})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected HTTPStatusError 503, got %v", err)
	}

	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"value": uint64(999)},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	balance, err := client.GetBalance(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if balance != 999 {
		t.Errorf("expected balance 999, got %d", balance)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		return rpcFailure{Code: -32600, Message: "Invalid Request"}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	_, err := client.GetBalance(ctx, "addr1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}

	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_Observer(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		return map[string]any{"value": uint64(1)}
	})

	var methods []string
	client := NewHTTPClient(server.URL, WithObserver(func(method string, _ time.Duration, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		methods = append(methods, method)
	}))

	if _, err := client.GetBalance(context.Background(), "addr1"); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if len(methods) != 1 || methods[0] != "getBalance" {
		t.Errorf("unexpected observed methods: %v", methods)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}
		return map[string]any{
			"value": map[string]any{
				"lamports":   uint64(1000000),
				"owner":      "11111111111111111111111111111111",
				"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "11111111111111111111111111111111" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if info.Data != "SGVsbG8gV29ybGQ=" {
		t.Errorf("unexpected data: %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) any {
		return map[string]any{"value": nil}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_TokenAccountMint(t *testing.T) {
	mint := make([]byte, 165)
	for i := 0; i < 32; i++ {
		mint[i] = byte(i + 1)
	}
	wantMint := base58.Encode(mint[:32])

	server := rpcServer(t, func(req rpcRequest) any {
		return map[string]any{
			"value": map[string]any{
				"lamports": uint64(2039280),
				"owner":    "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data":     []string{base64.StdEncoding.EncodeToString(mint), "base64"},
			},
		}
	})

	client := NewHTTPClient(server.URL)

	got, err := client.TokenAccountMint(context.Background(), "tokenaccount")
	if err != nil {
		t.Fatalf("TokenAccountMint: %v", err)
	}

	if got != wantMint {
		t.Errorf("expected mint %s, got %s", wantMint, got)
	}
}

func TestHTTPClient_TokenAccountBalance(t *testing.T) {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:72], 1_250_000)

	server := rpcServer(t, func(req rpcRequest) any {
		if len(req.Params) > 0 && req.Params[0] == "missing" {
			return map[string]any{"value": nil}
		}
		return map[string]any{
			"value": map[string]any{
				"lamports": uint64(2039280),
				"owner":    "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data":     []string{base64.StdEncoding.EncodeToString(data), "base64"},
			},
		}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	got, err := client.TokenAccountBalance(ctx, "tokenaccount")
	if err != nil {
		t.Fatalf("TokenAccountBalance: %v", err)
	}
	if got != 1_250_000 {
		t.Errorf("expected 1250000, got %d", got)
	}

	got, err = client.TokenAccountBalance(ctx, "missing")
	if err != nil {
		t.Fatalf("TokenAccountBalance missing: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0 for missing account, got %d", got)
	}
}

func TestParseTokenAccountAmount_Short(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(make([]byte, 40))
	if _, err := parseTokenAccountAmount(data); err == nil {
		t.Error("expected error for truncated account data")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "25000000", want: 25000000},
		{in: "18446744073709551615", want: 18446744073709551615},
		{in: "-1", wantErr: true},
		{in: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetBalance(ctx, "addr1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
	)

	_, err := client.GetBalance(context.Background(), "addr1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected wrapped HTTPStatusError 502, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := rpcServer(t, func(req rpcRequest) any {
		attempts.Add(1)
		return rpcFailure{Code: -32002, Message: "Transaction simulation failed"}
	})

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	if _, err := client.GetBalance(context.Background(), "addr1"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}
