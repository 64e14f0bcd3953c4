package solana

import "testing"

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testUSDC   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestFindAssociatedTokenAddress(t *testing.T) {
	got, err := FindAssociatedTokenAddress(testWallet, testUSDC, TokenProgramID)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress: %v", err)
	}

	const want = "FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Empty token program defaults to SPL Token.
	again, err := FindAssociatedTokenAddress(testWallet, testUSDC, "")
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress: %v", err)
	}
	if again != got {
		t.Errorf("expected %s with default program, got %s", got, again)
	}

	if IsOnCurve(got) {
		t.Error("associated token address must be off curve")
	}
}

func TestFindProgramAddress_Bump(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("metadata")}, "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}

	if addr != "HuKB83z4HVs1kt8ZuPzFjEDV7LjUSxc8PS3sAnb6Q6hD" {
		t.Errorf("unexpected address %s", addr)
	}

	if bump != 253 {
		t.Errorf("expected bump 253, got %d", bump)
	}
}

func TestFindAssociatedTokenAddress_InvalidInput(t *testing.T) {
	if _, err := FindAssociatedTokenAddress("not-base58!", testUSDC, ""); err == nil {
		t.Error("expected error for invalid wallet")
	}

	if _, err := FindAssociatedTokenAddress(testWallet, "abc", ""); err == nil {
		t.Error("expected error for short mint")
	}
}

func TestIsOnCurve(t *testing.T) {
	if !IsOnCurve(testWallet) {
		t.Error("wallet key should be on curve")
	}

	if IsOnCurve("bad") {
		t.Error("invalid address should not be on curve")
	}
}
