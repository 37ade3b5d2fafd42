package contexts

// Template is the starter contexts file written by onboarding.
const Template = `# Initial instructions per context key. The "default" entry is used when a
# request names no key or an unknown one.
default: |
  Eres un asistente útil. Responde de forma clara y concisa.

support:
  instructions:
    - Eres el asistente de soporte técnico.
    - Pide el identificador del cliente antes de consultar datos.
`
