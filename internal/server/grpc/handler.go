package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func pairResponse(p *services.TokenPair) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
		"token_type":    p.TokenType,
	})
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.auth.Register(ctx, stringField(req, "username"), stringField(req, "email"), stringField(req, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.auth.Login(ctx, stringField(req, "username"), stringField(req, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return pairResponse(tokens)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	token := stringField(req, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	tokens, err := s.auth.Refresh(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return pairResponse(tokens)
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	token := stringField(req, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	if err := s.auth.Logout(ctx, token); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &structpb.Struct{}, nil
}

func (s *GRPCServer) RevokeAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	if err := s.auth.RevokeAll(ctx, user.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &structpb.Struct{}, nil
}

// Deactivate disables the caller's own account and signs it out everywhere.
func (s *GRPCServer) Deactivate(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	if err := s.auth.Deactivate(ctx, user.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &structpb.Struct{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {

	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	return structpb.NewStruct(map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"is_active": user.IsActive,
	})
}
