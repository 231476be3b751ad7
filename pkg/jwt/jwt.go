package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired el token fue firmado correctamente pero ya venció.
	ErrExpired = errors.New("jwt: token expirado")
	// ErrInvalid token malformado, firma incorrecta o claims incompletos.
	ErrInvalid = errors.New("jwt: token inválido")
)

// Claims incluye los claims estándar JWT más el rol y departamento vigentes al momento de emitir.
// El middleware compara Role/Department contra el empleado actual para invalidar sesiones obsoletas.
type Claims struct {
	jwt.RegisteredClaims
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Generate firma un token HS256 con employeeID, role y department.
func Generate(secret, issuer, employeeID, role, department string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		EmployeeID: employeeID,
		Role:       role,
		Department: department,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida firma y vigencia. Distingue ErrExpired del resto de fallos (ErrInvalid).
func Parse(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt: secret vacío")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.EmployeeID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
