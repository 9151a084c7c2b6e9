package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Email Verification</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 0; background-color: #f4f4f4; }
        .container { max-width: 600px; margin: 30px auto; background: #ffffff; border-radius: 8px; box-shadow: 0 4px 15px rgba(0, 0, 0, 0.1); overflow: hidden; border: 1px solid #ddd; }
        .header { background-color: #28a745; color: white; padding: 20px; text-align: center; font-size: 26px; font-weight: bold; }
        .content { padding: 25px; line-height: 1.8; }
        .otp-box { display: block; font-size: 22px; font-weight: bold; background: #d4edda; color: #155724; padding: 10px; text-align: center; border-radius: 5px; border: 1px solid #c3e6cb; margin: 20px 0; }
        .footer { background-color: #f4f4f4; padding: 15px; text-align: center; color: #777; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">Email Verification</div>
        <div class="content">
            <p>Thank you for signing up! Please use the OTP below to verify your email address:</p>
            <div class="otp-box">{{.OTP}}</div>
            <p>The OTP is valid for 10 minutes.</p>
            <p>If you did not request this, please ignore this email or contact support.</p>
        </div>
        <div class="footer">
            <p>&copy; {{.Year}} Litvi Store. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Password Reset Request</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 0; background-color: #f4f4f4; }
        .container { max-width: 600px; margin: 30px auto; background: #ffffff; border-radius: 8px; box-shadow: 0 4px 15px rgba(0, 0, 0, 0.1); overflow: hidden; border: 1px solid #ddd; }
        .header { background-color: #007BFF; color: white; padding: 20px; text-align: center; font-size: 26px; font-weight: bold; }
        .content { padding: 25px; line-height: 1.8; }
        .otp-box { display: block; font-size: 22px; font-weight: bold; background: #f8d7da; color: #721c24; padding: 10px; text-align: center; border-radius: 5px; border: 1px solid #f5c6cb; margin: 20px 0; }
        .footer { background-color: #f4f4f4; padding: 15px; text-align: center; color: #777; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">Password Reset Request</div>
        <div class="content">
            <p>Hello {{.Email}},</p>
            <p>We received a request to reset your password. Use the OTP below to proceed:</p>
            <div class="otp-box">{{.OTP}}</div>
            <p>The OTP is valid for 10 minutes.</p>
            <p>If you did not request this, please ignore this email or contact support.</p>
        </div>
        <div class="footer">
            <p>&copy; {{.Year}} Litvi Store. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`))

type templateData struct {
	Email string
	OTP   string
	Year  int
}

// VerificationMessage builds the signup verification email carrying the OTP.
func VerificationMessage(to, otp string) (Message, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, templateData{OTP: otp, Year: time.Now().Year()}); err != nil {
		return Message{}, fmt.Errorf("mail: render verification email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Verify Your Email",
		Text:    fmt.Sprintf("Your OTP is %s. It is valid for 10 minutes.", otp),
		HTML:    buf.String(),
	}, nil
}

// ResetMessage builds the password-reset email carrying the OTP.
func ResetMessage(to, otp string) (Message, error) {
	var buf bytes.Buffer
	if err := resetTmpl.Execute(&buf, templateData{Email: to, OTP: otp, Year: time.Now().Year()}); err != nil {
		return Message{}, fmt.Errorf("mail: render reset email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Password Reset OTP",
		Text:    fmt.Sprintf("Your OTP for password reset is %s. It is valid for 10 minutes.", otp),
		HTML:    buf.String(),
	}, nil
}
