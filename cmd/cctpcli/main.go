// Copyright (C) 2025, Lux Industries, Inc.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"github.com/spf13/cobra"

	"github.com/luxfi/cctp"
	"github.com/luxfi/cctp/payload"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cctp",
	Short: "CCTP - Cross-domain burn/mint transfer protocol CLI",
	Long: `CCTP moves tokens between domains by burning on the source domain and
minting on the destination once an attester quorum has signed the message.

This CLI provides tools for creating, signing, and inspecting cross-domain
messages and burn payloads.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeBurnCmd)
	rootCmd.AddCommand(decodeBurnCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an attester key",
	Long:  `Generate a new secp256k1 attester key and print the key and its address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Printf("Private key: %x\n", crypto.FromECDSA(key))
		fmt.Printf("Address:     %s\n", crypto.PubkeyToAddress(key.PublicKey))
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message",
	Long:  `Sign serialized message bytes with an attester private key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		messageHex, _ := cmd.Flags().GetString("message")
		keyHex, _ := cmd.Flags().GetString("key")

		messageBytes, err := decodeHex(messageHex)
		if err != nil {
			return fmt.Errorf("invalid message hex: %w", err)
		}
		keyBytes, err := decodeHex(keyHex)
		if err != nil {
			return fmt.Errorf("invalid key hex: %w", err)
		}
		key, err := crypto.ToECDSA(keyBytes)
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}

		signer := cctp.NewSigner(key)
		signature, err := signer.SignMessage(messageBytes)
		if err != nil {
			return err
		}
		fmt.Printf("Attester:  %s\n", signer.Address())
		fmt.Printf("Signature: %x\n", signature)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recover the signers of an attestation",
	Long:  `Split an attestation blob into 65-byte slots and recover each signer address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		messageHex, _ := cmd.Flags().GetString("message")
		attestationHex, _ := cmd.Flags().GetString("attestation")

		messageBytes, err := decodeHex(messageHex)
		if err != nil {
			return fmt.Errorf("invalid message hex: %w", err)
		}
		attestation, err := decodeHex(attestationHex)
		if err != nil {
			return fmt.Errorf("invalid attestation hex: %w", err)
		}
		if len(attestation) == 0 || len(attestation)%cctp.AttestationSignatureLen != 0 {
			return fmt.Errorf("attestation length %d is not a multiple of %d", len(attestation), cctp.AttestationSignatureLen)
		}

		hash := cctp.MessageHash(messageBytes)
		for i := 0; i < len(attestation); i += cctp.AttestationSignatureLen {
			signer, err := cctp.RecoverAttester(hash, attestation[i:i+cctp.AttestationSignatureLen])
			if err != nil {
				return fmt.Errorf("slot %d: %w", i/cctp.AttestationSignatureLen, err)
			}
			fmt.Printf("Slot %d: %s\n", i/cctp.AttestationSignatureLen, signer)
		}
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a message envelope",
	Long:  `Encode a cross-domain message envelope from its fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDomain, _ := cmd.Flags().GetUint32("source-domain")
		destinationDomain, _ := cmd.Flags().GetUint32("destination-domain")
		nonce, _ := cmd.Flags().GetUint64("nonce")
		senderHex, _ := cmd.Flags().GetString("sender")
		recipientHex, _ := cmd.Flags().GetString("recipient")
		callerHex, _ := cmd.Flags().GetString("destination-caller")
		bodyHex, _ := cmd.Flags().GetString("body")

		sender, err := hexToID(senderHex)
		if err != nil {
			return fmt.Errorf("invalid sender: %w", err)
		}
		recipient, err := hexToID(recipientHex)
		if err != nil {
			return fmt.Errorf("invalid recipient: %w", err)
		}
		destinationCaller := ids.Empty
		if callerHex != "" {
			if destinationCaller, err = hexToID(callerHex); err != nil {
				return fmt.Errorf("invalid destination caller: %w", err)
			}
		}
		body, err := decodeHex(bodyHex)
		if err != nil {
			return fmt.Errorf("invalid body hex: %w", err)
		}

		msg := &cctp.Message{
			Version:           cctp.MessageVersion,
			SourceDomain:      sourceDomain,
			DestinationDomain: destinationDomain,
			Nonce:             nonce,
			Sender:            sender,
			Recipient:         recipient,
			DestinationCaller: destinationCaller,
			Body:              body,
		}
		fmt.Printf("Message: %x\n", msg.Bytes())
		fmt.Printf("Hash:    %s\n", msg.Hash())
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a message envelope",
	Long:  `Decode hex-encoded message envelope bytes and print the fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		messageHex, _ := cmd.Flags().GetString("message")

		messageBytes, err := decodeHex(messageHex)
		if err != nil {
			return fmt.Errorf("invalid message hex: %w", err)
		}
		msg, err := cctp.ParseMessage(messageBytes)
		if err != nil {
			return err
		}

		fmt.Printf("Version:            %d\n", msg.Version)
		fmt.Printf("Source Domain:      %d\n", msg.SourceDomain)
		fmt.Printf("Destination Domain: %d\n", msg.DestinationDomain)
		fmt.Printf("Nonce:              %d\n", msg.Nonce)
		fmt.Printf("Sender:             %s\n", msg.Sender)
		fmt.Printf("Recipient:          %s\n", msg.Recipient)
		fmt.Printf("Destination Caller: %s\n", msg.DestinationCaller)
		fmt.Printf("Body:               %x\n", msg.Body)
		fmt.Printf("Hash:               %s\n", cctp.MessageHash(messageBytes))

		// A body that parses as a burn payload is also printed decoded.
		if burn, err := payload.ParseBurnMessage(msg.Body); err == nil {
			fmt.Println("Burn body:")
			printBurnMessage(burn, "  ")
		}
		return nil
	},
}

var encodeBurnCmd = &cobra.Command{
	Use:   "encode-burn",
	Short: "Encode a burn payload",
	Long:  `Encode a burn message body from its fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		burnTokenHex, _ := cmd.Flags().GetString("burn-token")
		recipientHex, _ := cmd.Flags().GetString("mint-recipient")
		amountStr, _ := cmd.Flags().GetString("amount")
		senderHex, _ := cmd.Flags().GetString("message-sender")

		burnToken, err := hexToID(burnTokenHex)
		if err != nil {
			return fmt.Errorf("invalid burn token: %w", err)
		}
		mintRecipient, err := hexToID(recipientHex)
		if err != nil {
			return fmt.Errorf("invalid mint recipient: %w", err)
		}
		messageSender, err := hexToID(senderHex)
		if err != nil {
			return fmt.Errorf("invalid message sender: %w", err)
		}
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		burn := payload.NewBurnMessage(burnToken, mintRecipient, amount, messageSender)
		fmt.Printf("Burn message: %x\n", burn.Bytes())
		return nil
	},
}

var decodeBurnCmd = &cobra.Command{
	Use:   "decode-burn",
	Short: "Decode a burn payload",
	Long:  `Decode hex-encoded burn message body bytes and print the fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataHex, _ := cmd.Flags().GetString("data")

		data, err := decodeHex(dataHex)
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}
		burn, err := payload.ParseBurnMessage(data)
		if err != nil {
			return err
		}
		printBurnMessage(burn, "")
		return nil
	},
}

func init() {
	// Sign command flags
	signCmd.Flags().StringP("message", "m", "", "Serialized message (hex)")
	signCmd.Flags().StringP("key", "k", "", "Attester private key (hex)")
	signCmd.MarkFlagRequired("message")
	signCmd.MarkFlagRequired("key")

	// Verify command flags
	verifyCmd.Flags().StringP("message", "m", "", "Serialized message (hex)")
	verifyCmd.Flags().StringP("attestation", "a", "", "Attestation blob (hex)")
	verifyCmd.MarkFlagRequired("message")
	verifyCmd.MarkFlagRequired("attestation")

	// Encode command flags
	encodeCmd.Flags().Uint32("source-domain", 0, "Source domain")
	encodeCmd.Flags().Uint32("destination-domain", 0, "Destination domain")
	encodeCmd.Flags().Uint64("nonce", 0, "Message nonce")
	encodeCmd.Flags().String("sender", "", "Sender identity (hex)")
	encodeCmd.Flags().String("recipient", "", "Recipient identity (hex)")
	encodeCmd.Flags().String("destination-caller", "", "Restricted destination caller (hex, optional)")
	encodeCmd.Flags().String("body", "", "Message body (hex)")
	encodeCmd.MarkFlagRequired("sender")
	encodeCmd.MarkFlagRequired("recipient")

	// Decode command flags
	decodeCmd.Flags().StringP("message", "m", "", "Serialized message (hex)")
	decodeCmd.MarkFlagRequired("message")

	// Encode-burn command flags
	encodeBurnCmd.Flags().String("burn-token", "", "Burn token identity (hex)")
	encodeBurnCmd.Flags().String("mint-recipient", "", "Mint recipient identity (hex)")
	encodeBurnCmd.Flags().String("amount", "0", "Amount to bridge (decimal)")
	encodeBurnCmd.Flags().String("message-sender", "", "Original message sender identity (hex)")
	encodeBurnCmd.MarkFlagRequired("burn-token")
	encodeBurnCmd.MarkFlagRequired("mint-recipient")
	encodeBurnCmd.MarkFlagRequired("amount")
	encodeBurnCmd.MarkFlagRequired("message-sender")

	// Decode-burn command flags
	decodeBurnCmd.Flags().StringP("data", "d", "", "Burn message body (hex)")
	decodeBurnCmd.MarkFlagRequired("data")
}

func printBurnMessage(burn *payload.BurnMessage, indent string) {
	fmt.Printf("%sVersion:        %d\n", indent, burn.Version)
	fmt.Printf("%sBurn Token:     %s\n", indent, burn.BurnToken)
	fmt.Printf("%sMint Recipient: %s\n", indent, burn.MintRecipient)
	fmt.Printf("%sAmount:         %s\n", indent, burn.Amount.Dec())
	fmt.Printf("%sMessage Sender: %s\n", indent, burn.MessageSender)
}

// Helper functions
func decodeHex(hexStr string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
}

func hexToID(hexStr string) (ids.ID, error) {
	if len(hexStr) == 0 {
		return ids.Empty, fmt.Errorf("empty identity")
	}
	bytes, err := decodeHex(hexStr)
	if err != nil {
		return ids.Empty, err
	}
	if len(bytes) > 32 {
		return ids.Empty, fmt.Errorf("identity longer than 32 bytes")
	}

	// Pad to 32 bytes
	var id ids.ID
	copy(id[:], bytes)
	return id, nil
}
