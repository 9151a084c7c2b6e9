package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// resendWindow mirrors the server-side OTP cooldown so the CLI refuses a
// resend locally instead of burning a round trip on a 429.
const resendWindow = 30 * time.Second

// App binds the API client, the persisted state and the terminal streams
// into the command set exposed by the binary.
type App struct {
	client    *Client
	statePath string
	in        *bufio.Reader
	out       io.Writer
	now       func() time.Time
}

func NewApp(client *Client, statePath string, in io.Reader, out io.Writer) *App {
	return &App{
		client:    client,
		statePath: statePath,
		in:        bufio.NewReader(in),
		out:       out,
		now:       time.Now,
	}
}

func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}

	msg, err := a.client.Register(ctx, username, email, password)
	if err != nil {
		return a.reportAPIError(err)
	}

	fmt.Fprintln(a.out, msg)
	fmt.Fprintln(a.out, "Run `storecli verify` once the code arrives.")
	return nil
}

func (a *App) Verify(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	code, err := GetSimpleText(a.in, "OTP code", a.out)
	if err != nil {
		return err
	}

	msg, err := a.client.VerifyRegistration(ctx, email, code)
	if err != nil {
		return a.reportAPIError(err)
	}

	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}

	result, err := a.client.Login(ctx, email, password)
	if err != nil {
		return a.reportAPIError(err)
	}

	st, err := LoadState(a.statePath)
	if err != nil {
		return err
	}
	st.SessionToken = result.Token
	if err := SaveState(a.statePath, st); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", result.Username, result.Email)
	return nil
}

// Forgot requests a reset OTP. The reset token from the response is kept
// in the state file so the follow-up commands can present it.
func (a *App) Forgot(ctx context.Context) error {
	st, err := LoadState(a.statePath)
	if err != nil {
		return err
	}

	if wait := st.ResendCooldown(a.now()); wait > 0 {
		fmt.Fprintf(a.out, "An OTP was sent recently. Try again in %s.\n", wait)
		return nil
	}

	email, err := GetSimpleText(a.in, "Account email", a.out)
	if err != nil {
		return err
	}

	resetToken, err := a.client.RequestReset(ctx, email)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			st.ResendAllowed = a.now().Add(time.Duration(apiErr.RetryAfter) * time.Second)
			_ = SaveState(a.statePath, st)
		}
		return a.reportAPIError(err)
	}

	st.ResetToken = resetToken
	st.ResetEmail = email
	st.ResendAllowed = a.now().Add(resendWindow)
	if err := SaveState(a.statePath, st); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "OTP sent to email")
	fmt.Fprintln(a.out, "Run `storecli verify-reset` once the code arrives.")
	return nil
}

func (a *App) VerifyReset(ctx context.Context) error {
	st, err := LoadState(a.statePath)
	if err != nil {
		return err
	}
	if st.ResetToken == "" {
		return errors.New("no reset in progress, run `storecli forgot` first")
	}

	code, err := GetSimpleText(a.in, "OTP code", a.out)
	if err != nil {
		return err
	}

	msg, err := a.client.VerifyReset(ctx, st.ResetEmail, code, st.ResetToken)
	if err != nil {
		return a.reportAPIError(err)
	}

	fmt.Fprintln(a.out, msg)
	fmt.Fprintln(a.out, "Run `storecli reset` to choose a new password.")
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	st, err := LoadState(a.statePath)
	if err != nil {
		return err
	}
	if st.ResetToken == "" {
		return errors.New("no reset in progress, run `storecli forgot` first")
	}

	newPassword, err := GetPassword("New password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Confirm password", a.out)
	if err != nil {
		return err
	}

	msg, err := a.client.ResetPassword(ctx, st.ResetToken, newPassword, confirm)
	if err != nil {
		return a.reportAPIError(err)
	}

	st.ResetToken = ""
	st.ResetEmail = ""
	st.SessionToken = ""
	if err := SaveState(a.statePath, st); err != nil {
		return err
	}

	fmt.Fprintln(a.out, msg)
	fmt.Fprintln(a.out, "Log in again with your new password.")
	return nil
}

func (a *App) reportAPIError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintln(a.out, apiErr.Message)
		if apiErr.RetryAfter > 0 {
			fmt.Fprintf(a.out, "Try again in %d seconds.\n", apiErr.RetryAfter)
		}
		return nil
	}
	return err
}
